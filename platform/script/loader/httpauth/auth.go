// Package httpauth applies credentials to the requests of the HTTP source loader.
package httpauth

import (
	"context"
	"maps"
	"net/http"
)

// Authenticator adds credentials to an outgoing request.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
	Name() string
}

// NoAuth leaves requests unchanged.
type NoAuth struct{}

func NewNoAuth() *NoAuth { return &NoAuth{} }

func (n *NoAuth) Authenticate(ctx context.Context, _ *http.Request) error {
	return ctx.Err()
}

func (n *NoAuth) Name() string { return "None" }

// BasicAuth sets an RFC 7617 Authorization header. An empty username sends no header.
type BasicAuth struct {
	Username string
	Password string
}

func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{Username: username, Password: password}
}

func (b *BasicAuth) Authenticate(ctx context.Context, req *http.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Username != "" {
		req.SetBasicAuth(b.Username, b.Password)
	}
	return nil
}

func (b *BasicAuth) Name() string { return "Basic" }

// HeaderAuth sets fixed headers, such as an API key or a bearer token.
type HeaderAuth struct {
	Headers map[string]string
}

// NewHeaderAuth copies headers.
func NewHeaderAuth(headers map[string]string) *HeaderAuth {
	return &HeaderAuth{Headers: maps.Clone(headers)}
}

// NewBearerAuth sends "Authorization: Bearer <token>".
func NewBearerAuth(token string) *HeaderAuth {
	return &HeaderAuth{Headers: map[string]string{"Authorization": "Bearer " + token}}
}

func (h *HeaderAuth) Authenticate(ctx context.Context, req *http.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

func (h *HeaderAuth) Name() string { return "Header" }
