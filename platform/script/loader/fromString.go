package loader

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/robbyt/go-classbody/internal/helpers"
)

// FromString serves source text held in a string.
type FromString struct {
	content   string
	sourceURL *url.URL
}

// NewFromString creates a loader over content. Content that is empty after trimming is
// rejected; cook an empty body through scanner.FromString instead.
func NewFromString(content string) (*FromString, error) {
	return NewNamedString("inline", content)
}

// NewNamedString is NewFromString with a caller-chosen host part for the source URL, e.g.
// "calculator" gives "string://calculator/<hash>".
func NewNamedString(name, content string) (*FromString, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrSourceNotAvailable)
	}
	if name == "" {
		name = "inline"
	}

	u, err := sourceURL("string", name, helpers.SHA256(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create source URL: %w", err)
	}

	return &FromString{
		content:   content,
		sourceURL: u,
	}, nil
}

func (l *FromString) String() string {
	return fmt.Sprintf("loader.FromString{Chars: %d}", len(l.content))
}

func (l *FromString) GetReader() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(l.content)), nil
}

// GetSourceURL returns the source URL of the text.
func (l *FromString) GetSourceURL() *url.URL {
	return l.sourceURL
}
