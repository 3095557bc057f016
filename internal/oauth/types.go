// Package oauth talks to upstream OAuth 2.0 token endpoints on behalf of devices
package oauth

import (
	"context"
	"errors"
	"net/url"
)

// Common errors returned by the token endpoint client
var (
	ErrInvalidEndpoint     = errors.New("invalid token endpoint")
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
)

// Response is an upstream token endpoint response kept exactly as received
type Response struct {
	StatusCode  int
	StatusText  string
	ContentType string
	Body        []byte
}

// TokenEndpoint posts form-encoded token requests to an authorization server
type TokenEndpoint interface {
	PostForm(ctx context.Context, endpoint string, form url.Values) (*Response, error)
}
