// Package health reports whether the relay can serve device flows
package health

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/common"
	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
)

// Handler processes health check requests
type Handler struct {
	flow    deviceflow.Flow
	version string
	logger  zerolog.Logger
}

// Response represents the health check response.
// Version is omitted when empty.
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a new health check handler
func New(flow deviceflow.Flow) *Handler {
	return &Handler{
		flow:    flow,
		version: "unknown",
		logger:  zerolog.Nop(),
	}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// WithLogger sets the logger used when a check fails
func (h *Handler) WithLogger(logger zerolog.Logger) *Handler {
	h.logger = logger
	return h
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}
	status := http.StatusOK

	if err := h.flow.CheckHealth(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		response.Status = "unhealthy"
		response.Details["device_flow"] = map[string]any{
			"status":  "unhealthy",
			"message": err.Error(),
		}
		status = http.StatusServiceUnavailable
	} else {
		response.Details["device_flow"] = map[string]any{
			"status": "healthy",
		}
	}

	common.WriteJSON(w, status, response)
}
