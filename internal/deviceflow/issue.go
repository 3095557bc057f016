package deviceflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrale/oauth2-device-relay/internal/validation"
)

// Issue validates req, stores a new pending state and returns the device
// authorization response. Colliding codes are regenerated.
func (o *Orchestrator) Issue(ctx context.Context, baseURL string, req IssueRequest) (*Authorization, error) {
	if err := validation.Required(
		validation.Field{Name: "client_id", Value: req.ClientID},
		validation.Field{Name: "scope", Value: req.Scope},
		validation.Field{Name: "client_name", Value: req.ClientName},
		validation.Field{Name: "service_name", Value: req.ServiceName},
		validation.Field{Name: "authroize_url", Value: req.AuthorizeURL},
		validation.Field{Name: "token_url", Value: req.TokenURL},
	); err != nil {
		return nil, invalidRequest("%v", err)
	}
	if err := validation.ValidateEndpointURL("authroize_url", req.AuthorizeURL); err != nil {
		return nil, invalidRequest("%v", err)
	}
	if err := validation.ValidateEndpointURL("token_url", req.TokenURL); err != nil {
		return nil, invalidRequest("%v", err)
	}

	authorizeParams, err := ParseParams(req.AuthorizeParameters)
	if err != nil {
		return nil, invalidRequest("authroize_parameters: %v", err)
	}
	tokenParams, err := ParseParams(req.TokenParameters)
	if err != nil {
		return nil, invalidRequest("token_parameters: %v", err)
	}

	verificationURI, err := endpointURL(baseURL, o.endpoints.Verification)
	if err != nil {
		return nil, fmt.Errorf("building verification URI: %w", err)
	}

	state := &State{
		ClientID:            req.ClientID,
		Scope:               req.Scope,
		ExpiresAt:           o.now().Add(o.expiry),
		ClientName:          req.ClientName,
		ServiceName:         req.ServiceName,
		AuthorizeURL:        req.AuthorizeURL,
		AuthorizeParameters: authorizeParams,
		TokenURL:            req.TokenURL,
		TokenParameters:     tokenParams,
	}

	for attempt := 1; ; attempt++ {
		if state.DeviceCode, err = HumanCode(DeviceCodeLength); err != nil {
			return nil, fmt.Errorf("generating device code: %w", err)
		}
		if state.UserCode, err = HumanCode(UserCodeLength); err != nil {
			return nil, fmt.Errorf("generating user code: %w", err)
		}

		err = o.store.Add(ctx, state)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrCodeCollision) || attempt >= o.maxIssueAttempts {
			return nil, fmt.Errorf("storing device code: %w", err)
		}
		o.logger.Warn().Int("attempt", attempt).Msg("code collision, regenerating")
	}

	o.metrics.CodeIssued()
	o.logger.Info().
		Str("client_id", state.ClientID).
		Str("device_code", maskCode(state.DeviceCode)).
		Time("expires_at", state.ExpiresAt).
		Msg("device code issued")

	return &Authorization{
		DeviceCode:              state.DeviceCode,
		UserCode:                state.UserCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: completeVerificationURI(verificationURI, state.UserCode),
		ExpiresIn:               int(o.expiry.Seconds()),
		Interval:                int(o.interval.Seconds()),
	}, nil
}
