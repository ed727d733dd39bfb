package classfile

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal encodes f. The line table is written in ascending generated-line order.
func Marshal(f *File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: file is nil", ErrMalformed)
	}
	var b []byte
	b = appendVarint(b, 1, Version)
	b = appendString(b, 2, f.Machine)
	b = appendString(b, 3, f.SourceFile)
	b = appendVarint(b, 4, uint64(f.Debug))
	b = appendBytes(b, 5, f.Code)

	lines := slices.Clone(f.Lines)
	slices.SortStableFunc(lines, func(a, b LineEntry) int { return a.Generated - b.Generated })
	for _, l := range lines {
		var m []byte
		m = appendVarint(m, 1, uint64(l.Generated))
		m = appendVarint(m, 2, uint64(l.Source))
		b = appendMessage(b, 6, m)
	}
	for _, c := range f.Classes {
		if c == nil {
			return nil, fmt.Errorf("%w: nil class", ErrMalformed)
		}
		b = appendMessage(b, 7, marshalClass(c))
	}
	return b, nil
}

func marshalClass(c *Class) []byte {
	var b []byte
	b = appendString(b, 1, c.Name)
	b = appendVarint(b, 2, uint64(c.Modifiers))
	b = appendString(b, 3, c.Super)
	b = appendStrings(b, 4, c.Interfaces)
	for _, f := range c.Fields {
		var m []byte
		m = appendString(m, 1, f.Name)
		m = appendString(m, 2, f.Type)
		m = appendVarint(m, 3, uint64(f.Modifiers))
		b = appendMessage(b, 5, m)
	}
	for _, md := range c.Methods {
		var m []byte
		m = appendString(m, 1, md.Name)
		m = appendVarint(m, 2, uint64(md.Modifiers))
		m = appendStrings(m, 3, md.Params)
		m = appendStrings(m, 4, md.ParamNames)
		m = appendString(m, 5, md.Return)
		m = appendString(m, 6, md.Entry)
		m = appendVarint(m, 7, uint64(md.Line))
		b = appendMessage(b, 6, m)
	}
	for _, k := range c.Constructors {
		var m []byte
		m = appendVarint(m, 1, uint64(k.Modifiers))
		m = appendStrings(m, 2, k.Params)
		m = appendStrings(m, 3, k.ParamNames)
		m = appendString(m, 4, k.Entry)
		m = appendVarint(m, 5, uint64(k.Line))
		b = appendMessage(b, 7, m)
	}
	b = appendString(b, 8, c.StaticInit)
	b = appendString(b, 9, c.InstanceInit)
	b = appendBytes(b, 10, c.Code)
	b = appendVarint(b, 11, uint64(c.Line))
	return b
}

// Zero values are omitted, as proto3 does.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendStrings writes every element, empty ones included, so that positions survive.
func appendStrings(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// Unmarshal decodes a class file written by Marshal.
func Unmarshal(b []byte) (*File, error) {
	f := &File{}
	version := uint64(0)
	err := parseMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, &version)
		case 2:
			return consumeString(typ, b, &f.Machine)
		case 3:
			return consumeString(typ, b, &f.SourceFile)
		case 4:
			var v uint64
			n, err := consumeVarint(typ, b, &v)
			f.Debug = DebugFlags(v)
			return n, err
		case 5:
			return consumeBytes(typ, b, &f.Code)
		case 6:
			var l LineEntry
			return consumeMessage(typ, b, func(m []byte) error {
				return unmarshalLine(m, &l)
			}, func() { f.Lines = append(f.Lines, l) })
		case 7:
			c := &Class{}
			return consumeMessage(typ, b, func(m []byte) error {
				return unmarshalClass(m, c)
			}, func() { f.Classes = append(f.Classes, c) })
		}
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}
	return f, nil
}

func unmarshalLine(b []byte, l *LineEntry) error {
	return parseMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt(typ, b, &l.Generated)
		case 2:
			return consumeInt(typ, b, &l.Source)
		}
		return 0, nil
	})
}

func unmarshalClass(b []byte, c *Class) error {
	return parseMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &c.Name)
		case 2:
			return consumeUint32(typ, b, &c.Modifiers)
		case 3:
			return consumeString(typ, b, &c.Super)
		case 4:
			return consumeRepeatedString(typ, b, &c.Interfaces)
		case 5:
			fd := &Field{}
			return consumeMessage(typ, b, func(m []byte) error {
				return unmarshalField(m, fd)
			}, func() { c.Fields = append(c.Fields, fd) })
		case 6:
			md := &Method{}
			return consumeMessage(typ, b, func(m []byte) error {
				return unmarshalMethod(m, md)
			}, func() { c.Methods = append(c.Methods, md) })
		case 7:
			k := &Constructor{}
			return consumeMessage(typ, b, func(m []byte) error {
				return unmarshalConstructor(m, k)
			}, func() { c.Constructors = append(c.Constructors, k) })
		case 8:
			return consumeString(typ, b, &c.StaticInit)
		case 9:
			return consumeString(typ, b, &c.InstanceInit)
		case 10:
			return consumeBytes(typ, b, &c.Code)
		case 11:
			return consumeInt(typ, b, &c.Line)
		}
		return 0, nil
	})
}

func unmarshalField(b []byte, f *Field) error {
	return parseMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &f.Name)
		case 2:
			return consumeString(typ, b, &f.Type)
		case 3:
			return consumeUint32(typ, b, &f.Modifiers)
		}
		return 0, nil
	})
}

func unmarshalMethod(b []byte, m *Method) error {
	return parseMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Name)
		case 2:
			return consumeUint32(typ, b, &m.Modifiers)
		case 3:
			return consumeRepeatedString(typ, b, &m.Params)
		case 4:
			return consumeRepeatedString(typ, b, &m.ParamNames)
		case 5:
			return consumeString(typ, b, &m.Return)
		case 6:
			return consumeString(typ, b, &m.Entry)
		case 7:
			return consumeInt(typ, b, &m.Line)
		}
		return 0, nil
	})
}

func unmarshalConstructor(b []byte, k *Constructor) error {
	return parseMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &k.Modifiers)
		case 2:
			return consumeRepeatedString(typ, b, &k.Params)
		case 3:
			return consumeRepeatedString(typ, b, &k.ParamNames)
		case 4:
			return consumeString(typ, b, &k.Entry)
		case 5:
			return consumeInt(typ, b, &k.Line)
		}
		return 0, nil
	})
}

// fieldFunc consumes the value of one field and returns the number of bytes used, or 0 to
// have the field skipped as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func parseMessage(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func wrongType(typ, want protowire.Type) error {
	return fmt.Errorf("%w: wire type %d, want %d", ErrMalformed, typ, want)
}

func consumeVarint(typ protowire.Type, b []byte, v *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, wrongType(typ, protowire.VarintType)
	}
	x, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
	}
	*v = x
	return n, nil
}

func consumeUint32(typ protowire.Type, b []byte, v *uint32) (int, error) {
	var x uint64
	n, err := consumeVarint(typ, b, &x)
	*v = uint32(x)
	return n, err
}

func consumeInt(typ protowire.Type, b []byte, v *int) (int, error) {
	var x uint64
	n, err := consumeVarint(typ, b, &x)
	*v = int(x)
	return n, err
}

func consumeBytes(typ protowire.Type, b []byte, v *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, wrongType(typ, protowire.BytesType)
	}
	x, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
	}
	*v = slices.Clone(x)
	return n, nil
}

func consumeString(typ protowire.Type, b []byte, v *string) (int, error) {
	var x []byte
	n, err := consumeBytes(typ, b, &x)
	*v = string(x)
	return n, err
}

func consumeRepeatedString(typ protowire.Type, b []byte, v *[]string) (int, error) {
	var s string
	n, err := consumeString(typ, b, &s)
	if err == nil {
		*v = append(*v, s)
	}
	return n, err
}

func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error, done func()) (int, error) {
	var m []byte
	n, err := consumeBytes(typ, b, &m)
	if err != nil {
		return 0, err
	}
	if err := decode(m); err != nil {
		return 0, err
	}
	done()
	return n, nil
}
