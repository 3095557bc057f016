package deviceflow

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/oauth2-device-relay/internal/metrics"
)

// Defaults applied by NewOrchestrator
const (
	DefaultExpiry           = 900 * time.Second
	DefaultPollInterval     = 5 * time.Second
	DefaultMaxIssueAttempts = 5
)

// Endpoints holds the relay paths used to build verification and redirect URIs
type Endpoints struct {
	DeviceCode   string
	Verification string
	Redirect     string
	Token        string
}

// DefaultEndpoints returns the standard relay paths
func DefaultEndpoints() Endpoints {
	return Endpoints{
		DeviceCode:   "/devicecode",
		Verification: "/device",
		Redirect:     "/redirect",
		Token:        "/token",
	}
}

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithExpiryDuration sets how long an issued code pair stays live
// per RFC 8628 section 3.2 (expires_in)
func WithExpiryDuration(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.expiry = d
		}
	}
}

// WithPollInterval sets the interval advertised to devices
// per RFC 8628 section 3.2 (interval)
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithEndpoints overrides the relay paths
func WithEndpoints(e Endpoints) Option {
	return func(o *Orchestrator) {
		o.endpoints = e
	}
}

// WithMaxIssueAttempts bounds code generation retries on collision
func WithMaxIssueAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIssueAttempts = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}
