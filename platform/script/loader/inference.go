package loader

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// InferLoader picks a loader for input:
//   - string: http(s) URLs load over HTTP, "file://" URLs and absolute paths load from
//     disk, anything else is inline text
//   - []byte: FromBytes
//   - io.Reader: FromIoReader
//   - Loader: returned as is
func InferLoader(input any) (Loader, error) {
	switch v := input.(type) {
	case Loader:
		return v, nil
	case string:
		return inferFromString(v)
	case []byte:
		return NewFromBytes(v)
	case io.Reader:
		return NewFromIoReader(v, "inferred")
	default:
		return nil, fmt.Errorf("unsupported input type: %T", input)
	}
}

func inferFromString(input string) (Loader, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty string input", ErrSourceNotAvailable)
	}

	if strings.ContainsAny(trimmed, " \t\n;{}") {
		return NewFromString(input)
	}
	if u, err := url.Parse(trimmed); err == nil {
		switch u.Scheme {
		case "http", "https":
			return NewFromHTTP(trimmed)
		case "file":
			return NewFromDisk(trimmed)
		}
	}
	if filepath.IsAbs(trimmed) {
		return NewFromDisk(trimmed)
	}
	return NewFromString(input)
}
