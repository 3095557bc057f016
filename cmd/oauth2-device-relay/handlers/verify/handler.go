// Package verify serves the browser side of the flow: the verification page
// per RFC 8628 section 3.3 and the authorization server redirect
package verify

import (
	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
	"github.com/wrale/oauth2-device-relay/internal/templates"
)

// Handler processes user verification flow per RFC 8628 section 3.3
type Handler struct {
	flow             deviceflow.Flow
	templates        *templates.Templates
	baseURL          string
	verificationPath string
	scriptPath       string
	logger           zerolog.Logger
}

// Config contains handler configuration
type Config struct {
	Flow      deviceflow.Flow
	Templates *templates.Templates

	// BaseURL overrides the origin derived from each request
	BaseURL string

	// VerificationPath is where the code entry form submits
	VerificationPath string

	// ScriptPath optionally names a browser bundle loaded by the page
	ScriptPath string

	Logger zerolog.Logger
}

// New creates a new verification flow handler
func New(cfg Config) *Handler {
	return &Handler{
		flow:             cfg.Flow,
		templates:        cfg.Templates,
		baseURL:          cfg.BaseURL,
		verificationPath: cfg.VerificationPath,
		scriptPath:       cfg.ScriptPath,
		logger:           cfg.Logger,
	}
}
