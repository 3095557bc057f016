package deviceflow

import "time"

// GrantTypeDeviceCode is the grant_type a device uses when polling the token endpoint
const GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// State is one in-flight device authorization, owned by a Store
type State struct {
	DeviceCode string    `json:"device_code"`
	UserCode   string    `json:"user_code"`
	ClientID   string    `json:"client_id"`
	Scope      string    `json:"scope,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`

	// Resolution stays nil until the authorization server has answered
	Resolution *Resolution `json:"resolution,omitempty"`

	// Relay fields needed to finish the exchange on the device's behalf
	ClientName          string `json:"client_name"`
	ServiceName         string `json:"service_name"`
	AuthorizeURL        string `json:"authorize_url"`
	AuthorizeParameters Params `json:"authorize_parameters"`
	TokenURL            string `json:"token_url"`
	TokenParameters     Params `json:"token_parameters"`
}

// Expired reports whether the state is past its expiry at t
func (s *State) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Resolved reports whether an outcome has been recorded
func (s *State) Resolved() bool {
	return s.Resolution != nil
}

func (s *State) clone() *State {
	c := *s
	if s.Resolution != nil {
		r := *s.Resolution
		c.Resolution = &r
	}
	c.AuthorizeParameters = s.AuthorizeParameters.Clone()
	c.TokenParameters = s.TokenParameters.Clone()
	return &c
}

// Resolution is the upstream outcome replayed verbatim to the polling device
type Resolution struct {
	Status     int    `json:"status"`
	StatusText string `json:"status_text"`
	Body       string `json:"body"`
}

// IssueRequest carries the fields a device submits to obtain a code pair
type IssueRequest struct {
	ClientID            string
	Scope               string
	ClientName          string
	ServiceName         string
	AuthorizeURL        string
	AuthorizeParameters string // JSON object, empty means {}
	TokenURL            string
	TokenParameters     string // JSON object, empty means {}
}

// Authorization is the device authorization response per RFC 8628 section 3.2
type Authorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// Verification is the snapshot the verification page renders from
type Verification struct {
	ClientName    string `json:"clientName"`
	UserCode      string `json:"userCode"`
	ServiceName   string `json:"serviceName"`
	ServiceDomain string `json:"serviceDomain"`
	AuthorizeURL  string `json:"authroizeUrl"`
}
