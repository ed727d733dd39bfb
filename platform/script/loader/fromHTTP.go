package loader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/robbyt/go-classbody/platform/script/loader/httpauth"
)

const userAgent = "go-classbody/http-loader"

// HTTPOptions configures FromHTTP. Start from DefaultHTTPOptions.
type HTTPOptions struct {
	Timeout time.Duration
	// TLSConfig replaces the default transport's TLS settings when set.
	TLSConfig *tls.Config
	// Authenticator defaults to httpauth.NoAuth.
	Authenticator httpauth.Authenticator
	// Headers are sent with every request, before authentication is applied.
	Headers map[string]string
}

// DefaultHTTPOptions has a 30 second timeout and no authentication.
func DefaultHTTPOptions() *HTTPOptions {
	return &HTTPOptions{
		Timeout:       30 * time.Second,
		Authenticator: httpauth.NewNoAuth(),
		Headers:       make(map[string]string),
	}
}

// FromHTTP fetches source text from an http or https URL on every GetReader call.
type FromHTTP struct {
	url       string
	sourceURL *url.URL
	options   *HTTPOptions
	client    *http.Client
}

// NewFromHTTP creates an HTTP loader with DefaultHTTPOptions.
func NewFromHTTP(rawURL string) (*FromHTTP, error) {
	return NewFromHTTPWithOptions(rawURL, DefaultHTTPOptions())
}

// NewFromHTTPWithOptions creates an HTTP loader. A nil options means DefaultHTTPOptions.
func NewFromHTTPWithOptions(rawURL string, options *HTTPOptions) (*FromHTTP, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrSchemeUnsupported, rawURL)
	}
	if options == nil {
		options = DefaultHTTPOptions()
	}
	if options.Authenticator == nil {
		options.Authenticator = httpauth.NewNoAuth()
	}

	client := &http.Client{Timeout: options.Timeout}
	if options.TLSConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = options.TLSConfig
		client.Transport = transport
	}

	return &FromHTTP{
		url:       rawURL,
		sourceURL: u,
		options:   options,
		client:    client,
	}, nil
}

func (l *FromHTTP) String() string {
	return fmt.Sprintf("loader.FromHTTP{URL: %s, Auth: %s}", l.url, l.options.Authenticator.Name())
}

// GetReader fetches the source with a background context; the client timeout still applies.
func (l *FromHTTP) GetReader() (io.ReadCloser, error) {
	return l.GetReaderWithContext(context.Background())
}

// GetReaderWithContext fetches the source. A non-2xx status is ErrSourceNotAvailable.
func (l *FromHTTP) GetReaderWithContext(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range l.options.Headers {
		req.Header.Set(k, v)
	}
	if err := l.options.Authenticator.Authenticate(ctx, req); err != nil {
		return nil, fmt.Errorf("%s authentication failed: %w", l.options.Authenticator.Name(), err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceNotAvailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %s", ErrSourceNotAvailable, resp.Status)
	}
	return resp.Body, nil
}

// GetSourceURL returns the request URL.
func (l *FromHTTP) GetSourceURL() *url.URL {
	return l.sourceURL
}
