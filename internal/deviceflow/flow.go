package deviceflow

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/internal/metrics"
	"github.com/wrale/oauth2-device-relay/internal/oauth"
)

// Flow is the device authorization relay as seen by the HTTP handlers
type Flow interface {
	// Issue creates a code pair per RFC 8628 section 3.1
	Issue(ctx context.Context, baseURL string, req IssueRequest) (*Authorization, error)

	// Verify prepares the verification page for a user code
	Verify(ctx context.Context, baseURL, userCode string) (*Verification, error)

	// Callback handles the authorization server redirect and records the outcome
	Callback(ctx context.Context, baseURL string, query url.Values) (*Resolution, error)

	// Poll answers a device code token request per RFC 8628 section 3.4
	Poll(ctx context.Context, deviceCode string) (*Resolution, error)

	// Relay forwards any other token request to the token_uri it names
	Relay(ctx context.Context, form url.Values) (*Resolution, error)

	// CheckHealth verifies the backing store
	CheckHealth(ctx context.Context) error
}

// Orchestrator drives device authorization state through a Store
type Orchestrator struct {
	store    Store
	upstream oauth.TokenEndpoint

	expiry           time.Duration
	interval         time.Duration
	endpoints        Endpoints
	maxIssueAttempts int

	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

var _ Flow = (*Orchestrator)(nil)

// NewOrchestrator creates an orchestrator over store, exchanging codes through upstream
func NewOrchestrator(store Store, upstream oauth.TokenEndpoint, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:            store,
		upstream:         upstream,
		expiry:           DefaultExpiry,
		interval:         DefaultPollInterval,
		endpoints:        DefaultEndpoints(),
		maxIssueAttempts: DefaultMaxIssueAttempts,
		now:              time.Now,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Endpoints returns the configured relay paths
func (o *Orchestrator) Endpoints() Endpoints {
	return o.endpoints
}

// CheckHealth implements Flow
func (o *Orchestrator) CheckHealth(ctx context.Context) error {
	return o.store.CheckHealth(ctx)
}

// maskCode shows the first 3 and last 4 characters of a code for log lines
func maskCode(code string) string {
	if len(code) <= 8 {
		return "***"
	}
	return code[:3] + "***" + code[len(code)-4:]
}
