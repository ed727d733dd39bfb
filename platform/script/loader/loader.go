// Package loader supplies source text to the compiler from strings, byte slices, files and
// readers. Every loader reports a source URL which becomes the origin label of the tokens
// scanned from it, so diagnostics can point back at where a class body came from.
package loader

import (
	"errors"
	"io"
	"net/url"
)

var (
	ErrSchemeUnsupported  = errors.New("unsupported scheme")
	ErrSourceNotAvailable = errors.New("source not available")
)

// Loader is implemented by every source of class-body or compilation-unit text.
type Loader interface {
	GetReader() (io.ReadCloser, error)
	GetSourceURL() *url.URL
}

// sourceURL builds "<scheme>://<host>/<hash prefix>" for in-memory sources.
func sourceURL(scheme, host, digest string) (*url.URL, error) {
	return url.Parse(scheme + "://" + host + "/" + digest[:8])
}
