// Package token handles token requests per RFC 8628 section 3.4 and relays
// every other grant to the token endpoint the client names
package token

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/common"
	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
)

// Handler processes device access token requests per RFC 8628 section 3.4
type Handler struct {
	flow   deviceflow.Flow
	logger zerolog.Logger
}

// Config contains handler configuration options
type Config struct {
	Flow   deviceflow.Flow
	Logger zerolog.Logger
}

// New creates a new token request handler
func New(cfg Config) *Handler {
	return &Handler{
		flow:   cfg.Flow,
		logger: cfg.Logger,
	}
}

// ServeHTTP handles token polling and relay requests
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

	grantType := r.PostForm.Get("grant_type")
	if grantType == "" {
		common.WriteError(w, deviceflow.ErrorCodeInvalidRequest,
			"The grant_type parameter is REQUIRED")
		return
	}

	if grantType == deviceflow.GrantTypeDeviceCode {
		h.poll(w, r)
		return
	}
	h.relay(w, r)
}

func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	if key, dup := common.DuplicateParam(r.PostForm); dup {
		common.WriteError(w, deviceflow.ErrorCodeInvalidRequest,
			"Parameters MUST NOT be included more than once: "+key)
		return
	}

	deviceCode := r.PostForm.Get("device_code")
	if deviceCode == "" {
		common.WriteError(w, deviceflow.ErrorCodeInvalidRequest,
			"The device_code parameter is REQUIRED")
		return
	}

	res, err := h.flow.Poll(r.Context(), deviceCode)
	if err != nil {
		// Map standard errors to OAuth error responses per RFC 8628 section 3.5
		switch {
		case errors.Is(err, deviceflow.ErrInvalidDeviceCode):
			common.WriteError(w, deviceflow.ErrorCodeInvalidRequest,
				"The device_code parameter is REQUIRED")
		case errors.Is(err, deviceflow.ErrExpiredToken):
			common.WriteError(w, deviceflow.ErrorCodeExpiredToken,
				"The device_code has expired")
		case errors.Is(err, deviceflow.ErrPendingAuthorization):
			common.WriteError(w, deviceflow.ErrorCodeAuthorizationPending,
				"The authorization request is still pending")
		default:
			h.logger.Error().Err(err).Msg("polling device code")
			common.WriteErrorStatus(w, http.StatusInternalServerError, deviceflow.ErrorCodeServerError,
				"An unexpected error occurred processing the request")
		}
		return
	}

	common.WriteResolution(w, res)
}

func (h *Handler) relay(w http.ResponseWriter, r *http.Request) {
	res, err := h.flow.Relay(r.Context(), r.PostForm)
	if err != nil {
		var dferr *deviceflow.DeviceFlowError
		if errors.As(err, &dferr) {
			common.WriteError(w, dferr.Code, dferr.Description)
			return
		}
		h.logger.Error().Err(err).Msg("relaying token request")
		common.WriteErrorStatus(w, http.StatusInternalServerError, deviceflow.ErrorCodeServerError,
			"An unexpected error occurred processing the request")
		return
	}

	common.WriteResolution(w, res)
}
