package verify

import (
	"errors"
	"net/http"

	"github.com/wrale/oauth2-device-relay/cmd/oauth2-device-relay/handlers/common"
	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
	"github.com/wrale/oauth2-device-relay/internal/templates"
	"github.com/wrale/oauth2-device-relay/internal/validation"
)

// HandleForm shows the verification page per RFC 8628 section 3.3. Without a
// code it asks for one; with a live code it shows the client and a link to
// the authorization server; anything else is reported as invalid.
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	data := templates.VerifyData{
		VerificationPath: h.verificationPath,
		ScriptPath:       h.scriptPath,
	}

	code := validation.NormalizeCode(r.URL.Query().Get("code"))
	if code != "" {
		data.UserCode = code

		v, err := h.flow.Verify(r.Context(), common.BaseURL(r, h.baseURL), code)
		switch {
		case err == nil:
			data.ClientName = v.ClientName
			data.UserCode = v.UserCode
			data.ServiceName = v.ServiceName
			data.ServiceDomain = v.ServiceDomain
			data.AuthorizeURL = v.AuthorizeURL
		case errors.Is(err, deviceflow.ErrInvalidUserCode):
			h.logger.Debug().Msg("verification with unknown user code")
		default:
			h.logger.Error().Err(err).Msg("verifying user code")
			http.Error(w, "error verifying code", http.StatusInternalServerError)
			return
		}
	}

	if err := h.templates.RenderVerify(w, data); err != nil {
		h.logger.Error().Err(err).Msg("rendering verification page")
		http.Error(w, "error rendering page", http.StatusInternalServerError)
	}
}
