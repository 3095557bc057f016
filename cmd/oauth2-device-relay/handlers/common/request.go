package common

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
)

// BaseURL returns configured when set, otherwise the scheme and host the
// request arrived on
func BaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimSuffix(configured, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

// DuplicateParam returns the first parameter present more than once, per
// RFC 8628 section 3.1 parameters MUST NOT repeat
func DuplicateParam(form url.Values) (string, bool) {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if len(form[k]) > 1 {
			return k, true
		}
	}
	return "", false
}

// WriteResolution replays a stored or relayed upstream response verbatim
func WriteResolution(w http.ResponseWriter, res *deviceflow.Resolution) {
	SetJSONHeaders(w)
	w.WriteHeader(res.Status)
	_, _ = w.Write([]byte(res.Body))
}
