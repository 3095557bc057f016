package deviceflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wrale/oauth2-device-relay/internal/metrics"
)

// unreachableBody is stored when the token endpoint cannot be reached at all
const unreachableBody = `{"error":"server_error","error_description":"token endpoint unreachable"}`

// Callback records the authorization server's answer for the user code in
// state. An error callback is stored as a 400 without contacting the token
// endpoint; otherwise the code is exchanged and the upstream reply stored as is.
func (o *Orchestrator) Callback(ctx context.Context, baseURL string, query url.Values) (*Resolution, error) {
	userCode := query.Get("state")
	if userCode == "" {
		return nil, ErrMissingState
	}

	st, err := o.store.GetByUserCode(ctx, userCode)
	if err != nil {
		return nil, fmt.Errorf("looking up user code: %w", err)
	}
	if st == nil || st.Expired(o.now()) {
		return nil, ErrInvalidUserCode
	}
	if st.Resolved() {
		return nil, ErrAlreadyResolved
	}

	var (
		res     *Resolution
		outcome string
	)
	if query.Get("error") != "" {
		res, err = errorResolution(query)
		if err != nil {
			return nil, err
		}
		outcome = metrics.OutcomeDenied
	} else {
		code := query.Get("code")
		if code == "" {
			return nil, ErrMissingCode
		}
		if res, err = o.exchange(ctx, baseURL, st, code); err != nil {
			return nil, err
		}
		outcome = metrics.OutcomeGranted
		if res.Status >= http.StatusBadRequest {
			outcome = metrics.OutcomeUpstreamError
		}
	}

	if err := o.store.Resolve(ctx, userCode, res); err != nil {
		if errors.Is(err, ErrAlreadyResolved) || errors.Is(err, ErrInvalidUserCode) {
			return nil, err
		}
		return nil, fmt.Errorf("storing resolution: %w", err)
	}

	o.metrics.Resolution(outcome)
	o.logger.Info().
		Str("client_id", st.ClientID).
		Str("outcome", outcome).
		Int("status", res.Status).
		Msg("device authorization resolved")
	return res, nil
}

// exchange redeems an authorization code per RFC 6749 section 4.1.3
func (o *Orchestrator) exchange(ctx context.Context, baseURL string, st *State, code string) (*Resolution, error) {
	redirectURI, err := endpointURL(baseURL, o.endpoints.Redirect)
	if err != nil {
		return nil, fmt.Errorf("building redirect URI: %w", err)
	}

	form := st.TokenParameters.Values()
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", st.ClientID)

	// the outcome belongs to the device, so a browser hanging up must not abort the exchange
	resp, err := o.upstream.PostForm(context.WithoutCancel(ctx), st.TokenURL, form)
	if err != nil {
		o.logger.Warn().Err(err).Str("token_url", st.TokenURL).Msg("token exchange failed")
		return unreachableResolution(), nil
	}
	return &Resolution{
		Status:     resp.StatusCode,
		StatusText: resp.StatusText,
		Body:       string(resp.Body),
	}, nil
}

// errorResolution echoes an error callback, minus state, as a JSON object
func errorResolution(query url.Values) (*Resolution, error) {
	echo := make(map[string]string, len(query))
	for k := range query {
		if k == "state" {
			continue
		}
		echo[k] = query.Get(k)
	}
	body, err := json.Marshal(echo)
	if err != nil {
		return nil, fmt.Errorf("encoding callback error: %w", err)
	}
	return &Resolution{
		Status:     http.StatusBadRequest,
		StatusText: http.StatusText(http.StatusBadRequest),
		Body:       string(body),
	}, nil
}

func unreachableResolution() *Resolution {
	return &Resolution{
		Status:     http.StatusBadGateway,
		StatusText: http.StatusText(http.StatusBadGateway),
		Body:       unreachableBody,
	}
}
