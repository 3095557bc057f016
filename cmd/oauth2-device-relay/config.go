package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
)

// Store backends
const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

// Config holds server configuration loaded from environment variables
type Config struct {
	Port    int    `envconfig:"PORT" default:"8080"`
	BaseURL string `envconfig:"BASE_URL"`

	Store    string `envconfig:"STORE" default:"memory"`
	RedisURL string `envconfig:"REDIS_URL"`

	CodeExpiry    time.Duration `envconfig:"DEVICE_CODE_EXPIRE_IN" default:"900s"`
	PollInterval  time.Duration `envconfig:"POLLING_INTERVAL" default:"5s"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"60s"`

	DeviceCodePath   string `envconfig:"DEVICE_CODE_PATH" default:"/devicecode"`
	VerificationPath string `envconfig:"VERIFICATION_PATH" default:"/device"`
	RedirectPath     string `envconfig:"REDIRECT_PATH" default:"/redirect"`
	TokenPath        string `envconfig:"TOKEN_PATH" default:"/token"`

	WebScriptPath string `envconfig:"WEB_SCRIPT_PATH"`
	WebScriptFile string `envconfig:"WEB_SCRIPT_FILE"`

	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// loadConfig reads the environment and validates the result
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings envconfig cannot express
func (c Config) Validate() error {
	var errs []error

	switch c.Store {
	case storeMemory:
	case storeRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", storeMemory, storeRedis, c.Store))
	}

	for name, p := range map[string]string{
		"DEVICE_CODE_PATH":  c.DeviceCodePath,
		"VERIFICATION_PATH": c.VerificationPath,
		"REDIRECT_PATH":     c.RedirectPath,
		"TOKEN_PATH":        c.TokenPath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s must start with /, got %q", name, p))
		}
	}

	if (c.WebScriptPath == "") != (c.WebScriptFile == "") {
		errs = append(errs, errors.New("WEB_SCRIPT_PATH and WEB_SCRIPT_FILE must be set together"))
	}
	if c.WebScriptPath != "" && !strings.HasPrefix(c.WebScriptPath, "/") {
		errs = append(errs, fmt.Errorf("WEB_SCRIPT_PATH must start with /, got %q", c.WebScriptPath))
	}

	if c.CodeExpiry <= 0 || c.PollInterval <= 0 || c.SweepInterval <= 0 {
		errs = append(errs, errors.New("DEVICE_CODE_EXPIRE_IN, POLLING_INTERVAL and SWEEP_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// Endpoints returns the configured relay paths
func (c Config) Endpoints() deviceflow.Endpoints {
	return deviceflow.Endpoints{
		DeviceCode:   c.DeviceCodePath,
		Verification: c.VerificationPath,
		Redirect:     c.RedirectPath,
		Token:        c.TokenPath,
	}
}
