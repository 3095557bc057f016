// Package device handles device authorization requests per RFC 8628 section 3.1
package device

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/common"
	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
)

// Handler processes device code requests per RFC 8628 section 3.2
type Handler struct {
	flow    deviceflow.Flow
	baseURL string
	logger  zerolog.Logger
}

// Config contains handler configuration options
type Config struct {
	Flow deviceflow.Flow

	// BaseURL overrides the origin derived from each request
	BaseURL string
	Logger  zerolog.Logger
}

// New creates a new device code request handler
func New(cfg Config) *Handler {
	return &Handler{
		flow:    cfg.Flow,
		baseURL: cfg.BaseURL,
		logger:  cfg.Logger,
	}
}

// ServeHTTP handles device code requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		common.WriteError(w, deviceflow.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	if err := r.ParseForm(); err != nil {
		common.WriteError(w, deviceflow.ErrorCodeInvalidRequest, "Invalid request format")
		return
	}

	if key, dup := common.DuplicateParam(r.PostForm); dup {
		common.WriteError(w, deviceflow.ErrorCodeInvalidRequest, "Parameters MUST NOT be included more than once: "+key)
		return
	}

	authorization, err := h.flow.Issue(r.Context(), common.BaseURL(r, h.baseURL), issueRequest(r))
	if err != nil {
		var dferr *deviceflow.DeviceFlowError
		if errors.As(err, &dferr) {
			common.WriteError(w, dferr.Code, dferr.Description)
			return
		}
		h.logger.Error().Err(err).Msg("issuing device code")
		common.WriteErrorStatus(w, http.StatusInternalServerError,
			deviceflow.ErrorCodeServerError, "Failed to generate device code")
		return
	}

	common.WriteJSON(w, http.StatusOK, authorization)
}

// issueRequest reads the issuance fields from the request body. The
// misspelled authroize_* names are the established wire format; the correct
// spelling is accepted as a fallback.
func issueRequest(r *http.Request) deviceflow.IssueRequest {
	return deviceflow.IssueRequest{
		ClientID:            r.PostForm.Get("client_id"),
		Scope:               r.PostForm.Get("scope"),
		ClientName:          r.PostForm.Get("client_name"),
		ServiceName:         r.PostForm.Get("service_name"),
		AuthorizeURL:        firstOf(r, "authroize_url", "authorize_url"),
		AuthorizeParameters: firstOf(r, "authroize_parameters", "authorize_parameters"),
		TokenURL:            r.PostForm.Get("token_url"),
		TokenParameters:     r.PostForm.Get("token_parameters"),
	}
}

func firstOf(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := r.PostForm.Get(k); v != "" {
			return v
		}
	}
	return ""
}
