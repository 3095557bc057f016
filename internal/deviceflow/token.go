package deviceflow

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wrale/oauth2-device-relay/internal/metrics"
	"github.com/wrale/oauth2-device-relay/internal/validation"
)

// Poll returns the stored resolution for deviceCode and removes the state, so
// each outcome is delivered once. Unknown, expired and consumed codes all
// yield ErrExpiredToken.
func (o *Orchestrator) Poll(ctx context.Context, deviceCode string) (*Resolution, error) {
	if deviceCode == "" {
		return nil, ErrInvalidDeviceCode
	}

	st, err := o.store.GetByDeviceCode(ctx, deviceCode)
	if err != nil {
		return nil, fmt.Errorf("looking up device code: %w", err)
	}
	if st == nil || st.Expired(o.now()) {
		o.metrics.Poll(metrics.PollExpired)
		return nil, ErrExpiredToken
	}
	if !st.Resolved() {
		o.metrics.Poll(metrics.PollPending)
		return nil, ErrPendingAuthorization
	}

	removed, err := o.store.Remove(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("removing device code: %w", err)
	}
	if !removed {
		// a concurrent poll took it first
		o.metrics.Poll(metrics.PollExpired)
		return nil, ErrExpiredToken
	}

	o.metrics.Poll(metrics.PollDelivered)
	o.logger.Info().
		Str("client_id", st.ClientID).
		Str("device_code", maskCode(deviceCode)).
		Int("status", st.Resolution.Status).
		Msg("device authorization delivered")
	return st.Resolution, nil
}

// Relay forwards a non device-code token request to the endpoint named by
// token_uri and returns the reply untouched. The store is not involved.
func (o *Orchestrator) Relay(ctx context.Context, form url.Values) (*Resolution, error) {
	tokenURI := form.Get("token_uri")
	if tokenURI == "" {
		return nil, invalidRequest("The token_uri parameter is REQUIRED")
	}
	if err := validation.ValidateEndpointURL("token_uri", tokenURI); err != nil {
		return nil, invalidRequest("%v", err)
	}

	body := make(url.Values, len(form))
	for k, v := range form {
		if k != "token_uri" {
			body[k] = append([]string(nil), v...)
		}
	}

	resp, err := o.upstream.PostForm(ctx, tokenURI, body)
	if err != nil {
		o.logger.Warn().Err(err).Str("token_uri", tokenURI).Msg("token relay failed")
		res := unreachableResolution()
		o.metrics.Relayed(res.Status)
		return res, nil
	}

	o.metrics.Relayed(resp.StatusCode)
	return &Resolution{
		Status:     resp.StatusCode,
		StatusText: resp.StatusText,
		Body:       string(resp.Body),
	}, nil
}
