package verify

import (
	"errors"
	"net/http"

	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/common"
	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
	"github.com/wrale/oauth2-device-relay/internal/templates"
)

// HandleComplete receives the authorization server redirect and records its
// outcome for the polling device. Callbacks that cannot be matched to a
// pending authorization are dropped with an empty 200.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	res, err := h.flow.Callback(r.Context(), common.BaseURL(r, h.baseURL), r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, deviceflow.ErrMissingState),
			errors.Is(err, deviceflow.ErrMissingCode),
			errors.Is(err, deviceflow.ErrInvalidUserCode),
			errors.Is(err, deviceflow.ErrAlreadyResolved):
			h.logger.Info().Err(err).Msg("dropping redirect callback")
			w.WriteHeader(http.StatusOK)
		default:
			h.logger.Error().Err(err).Msg("handling redirect callback")
			http.Error(w, "error completing authorization", http.StatusInternalServerError)
		}
		return
	}

	data := templates.CompleteData{
		Title:   "Device Authorized",
		Message: "You have successfully authorized the device.",
		Success: true,
	}
	if res.Status >= http.StatusBadRequest {
		data = templates.CompleteData{
			Title:   "Authorization Failed",
			Message: "The device was not authorized. It will be told when it next checks in.",
		}
	}

	if err := h.templates.RenderComplete(w, data); err != nil {
		h.logger.Error().Err(err).Msg("rendering completion page")
		http.Error(w, "error rendering page", http.StatusInternalServerError)
	}
}
