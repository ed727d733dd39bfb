package extism

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/robbyt/go-classbody/runtime"
)

// passable reports whether values of t can cross the plugin boundary.
func passable(t runtime.Type) bool {
	if t.IsPrimitive() {
		return t != runtime.Void
	}
	return t.Name() == runtime.StringClassName
}

func encodeArgs(args []runtime.Value) ([]byte, error) {
	vals := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil, int32, int64, bool, string:
			vals[i] = v
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: argument %d is %v", ErrUnsupportedArg, i, v)
			}
			vals[i] = v
		default:
			return nil, fmt.Errorf("%w: argument %d has type %T", ErrUnsupportedArg, i, a)
		}
	}
	return json.Marshal(vals)
}

// decodeResult parses output as a single JSON value and converts it to t.
func decodeResult(output []byte, t runtime.Type) (runtime.Value, error) {
	d := json.NewDecoder(bytes.NewReader(output))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResult, err)
	}
	if n, ok := v.(json.Number); ok {
		var err error
		if v, err = number(n, t); err != nil {
			return nil, err
		}
	}
	out, err := runtime.Coerce(v, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResult, err)
	}
	return out, nil
}

func number(n json.Number, t runtime.Type) (any, error) {
	if t == runtime.Double {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadResult, err)
		}
		return f, nil
	}
	i, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not an integer", ErrBadResult, n)
	}
	return i, nil
}
