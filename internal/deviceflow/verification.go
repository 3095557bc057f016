package deviceflow

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/wrale/oauth2-device-relay/internal/validation"
)

// reservedAuthorizeParams are always set by the relay and cannot be overridden
var reservedAuthorizeParams = []string{"response_type", "client_id", "redirect_uri", "scope", "state"}

// Verify looks up a user code and builds the authorization server URL the
// browser is sent to. It never modifies state.
func (o *Orchestrator) Verify(ctx context.Context, baseURL, userCode string) (*Verification, error) {
	userCode = validation.NormalizeCode(userCode)
	if err := validation.ValidateUserCode(userCode, UserCodeLength); err != nil {
		return nil, ErrInvalidUserCode
	}

	st, err := o.store.GetByUserCode(ctx, userCode)
	if err != nil {
		return nil, fmt.Errorf("looking up user code: %w", err)
	}
	if st == nil || st.Expired(o.now()) {
		return nil, ErrInvalidUserCode
	}

	authorizeURL, err := o.authorizeURL(baseURL, st)
	if err != nil {
		return nil, err
	}

	var domain string
	if u, err := url.Parse(st.AuthorizeURL); err == nil {
		domain = u.Host
	}

	return &Verification{
		ClientName:    st.ClientName,
		UserCode:      st.UserCode,
		ServiceName:   st.ServiceName,
		ServiceDomain: domain,
		AuthorizeURL:  authorizeURL,
	}, nil
}

// authorizeURL builds the authorization request per RFC 6749 section 4.1.1,
// carrying the user code as state
func (o *Orchestrator) authorizeURL(baseURL string, st *State) (string, error) {
	redirectURI, err := endpointURL(baseURL, o.endpoints.Redirect)
	if err != nil {
		return "", fmt.Errorf("building redirect URI: %w", err)
	}

	cfg := &oauth2.Config{
		ClientID:    st.ClientID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  st.AuthorizeURL,
			TokenURL: st.TokenURL,
		},
	}
	if st.Scope != "" {
		cfg.Scopes = []string{st.Scope}
	}

	extra := st.AuthorizeParameters.Without(reservedAuthorizeParams...)
	opts := make([]oauth2.AuthCodeOption, 0, len(extra))
	for _, p := range extra {
		opts = append(opts, oauth2.SetAuthURLParam(p.Key, p.Value))
	}

	return cfg.AuthCodeURL(st.UserCode, opts...), nil
}
