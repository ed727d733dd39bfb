package loader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyt/go-classbody/platform/script/loader/httpauth"
)

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Calc.body":
			_, _ = io.WriteString(w, body)
		case "/private.body":
			if u, p, ok := r.BasicAuth(); !ok || u != "user" || p != "pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, body)
		case "/agent":
			_, _ = io.WriteString(w, r.Header.Get("User-Agent")+"|"+r.Header.Get("X-Trace"))
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFromHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"https", "https://example.com/Calc.body", nil},
		{"http", "http://example.com/Calc.body", nil},
		{"file scheme", "file:///tmp/Calc.body", ErrSchemeUnsupported},
		{"no scheme", "example.com/Calc.body", ErrSchemeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := NewFromHTTP(tt.url)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.url, l.GetSourceURL().String())
			assert.Equal(t, "loader.FromHTTP{URL: "+tt.url+", Auth: None}", l.String())
		})
	}

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := NewFromHTTP("http://[::1")
		require.ErrorContains(t, err, "unable to parse URL")
	})
}

func TestFromHTTPGetReader(t *testing.T) {
	t.Parallel()
	srv := newSourceServer(t)

	t.Run("public", func(t *testing.T) {
		t.Parallel()
		l, err := NewFromHTTP(srv.URL + "/Calc.body")
		require.NoError(t, err)
		assert.Equal(t, body, readAll(t, l))
	})

	t.Run("basic auth", func(t *testing.T) {
		t.Parallel()
		opts := DefaultHTTPOptions()
		opts.Authenticator = httpauth.NewBasicAuth("user", "pass")
		l, err := NewFromHTTPWithOptions(srv.URL+"/private.body", opts)
		require.NoError(t, err)
		assert.Equal(t, body, readAll(t, l))
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()
		l, err := NewFromHTTP(srv.URL + "/private.body")
		require.NoError(t, err)
		_, err = l.GetReader()
		require.ErrorIs(t, err, ErrSourceNotAvailable)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		l, err := NewFromHTTP(srv.URL + "/nothing")
		require.NoError(t, err)
		_, err = l.GetReader()
		require.ErrorIs(t, err, ErrSourceNotAvailable)
	})

	t.Run("headers and user agent", func(t *testing.T) {
		t.Parallel()
		l, err := NewFromHTTPWithOptions(srv.URL+"/agent", &HTTPOptions{
			Timeout: 5 * time.Second,
			Headers: map[string]string{"X-Trace": "abc"},
		})
		require.NoError(t, err)
		assert.Equal(t, userAgent+"|abc", readAll(t, l))
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		l, err := NewFromHTTP(srv.URL + "/slow")
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()
		_, err = l.GetReaderWithContext(ctx)
		require.ErrorIs(t, err, ErrSourceNotAvailable)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
