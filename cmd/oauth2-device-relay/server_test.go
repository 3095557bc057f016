package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
	"github.com/wrale/oauth2-device-relay/internal/metrics"
	"github.com/wrale/oauth2-device-relay/internal/oauth"
)

func testConfig() Config {
	return Config{
		Port:              8080,
		Store:             storeMemory,
		CodeExpiry:        900 * time.Second,
		PollInterval:      5 * time.Second,
		SweepInterval:     time.Minute,
		DeviceCodePath:    "/devicecode",
		VerificationPath:  "/device",
		RedirectPath:      "/redirect",
		TokenPath:         "/token",
		UpstreamTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// upstream records token requests and answers them from a fixed reply
type upstream struct {
	*httptest.Server

	mu     sync.Mutex
	forms  []url.Values
	status int
	body   string
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{status: status, body: body}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		u.mu.Lock()
		u.forms = append(u.forms, r.PostForm)
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(u.status)
		_, _ = io.WriteString(w, u.body)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) requests() []url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]url.Values(nil), u.forms...)
}

type relay struct {
	*httptest.Server
	store   *deviceflow.MemoryStore
	metrics *metrics.Metrics
}

func newRelay(t *testing.T, cfg Config) *relay {
	t.Helper()
	m := metrics.New()
	store := deviceflow.NewMemoryStore(deviceflow.WithSweepInterval(cfg.SweepInterval))
	t.Cleanup(func() { _ = store.Close() })

	flow := deviceflow.NewOrchestrator(store,
		oauth.NewClient(oauth.WithTimeout(cfg.UpstreamTimeout)),
		deviceflow.WithExpiryDuration(cfg.CodeExpiry),
		deviceflow.WithPollInterval(cfg.PollInterval),
		deviceflow.WithEndpoints(cfg.Endpoints()),
		deviceflow.WithMetrics(m),
	)

	srv, err := newServer(cfg, flow, m, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return &relay{Server: ts, store: store, metrics: m}
}

func (r *relay) issue(t *testing.T, up *upstream) deviceflow.Authorization {
	t.Helper()
	resp, err := http.PostForm(r.URL+"/devicecode", url.Values{
		"client_id":            {"abc"},
		"scope":                {"openid offline_access"},
		"client_name":          {"Terminal"},
		"service_name":         {"Contoso"},
		"authroize_url":        {"https://login.example.com/authorize"},
		"authroize_parameters": {`{"prompt":"select_account"}`},
		"token_url":            {up.URL + "/token"},
		"token_parameters":     {`{"client_secret":"s3cret"}`},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var auth deviceflow.Authorization
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	return auth
}

func (r *relay) poll(t *testing.T, deviceCode string) (int, string) {
	t.Helper()
	return postForm(t, r.URL+"/token", url.Values{
		"grant_type":  {deviceflow.GrantTypeDeviceCode},
		"device_code": {deviceCode},
	})
}

func postForm(t *testing.T, endpoint string, form url.Values) (int, string) {
	t.Helper()
	resp, err := http.PostForm(endpoint, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func get(t *testing.T, endpoint string) (int, string) {
	t.Helper()
	resp, err := http.Get(endpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp), body)
	return resp.Error
}

func TestDeviceFlowExchange(t *testing.T) {
	const tokenBody = `{"access_token":"T","token_type":"Bearer","expires_in":3600}`
	up := newUpstream(t, http.StatusOK, tokenBody)
	r := newRelay(t, testConfig())

	auth := r.issue(t, up)
	assert.Len(t, auth.DeviceCode, deviceflow.DeviceCodeLength)
	assert.Len(t, auth.UserCode, deviceflow.UserCodeLength)
	assert.Equal(t, r.URL+"/device", auth.VerificationURI)
	assert.Equal(t, auth.VerificationURI+"?code="+auth.UserCode, auth.VerificationURIComplete)
	assert.Equal(t, 900, auth.ExpiresIn)
	assert.Equal(t, 5, auth.Interval)

	status, body := r.poll(t, auth.DeviceCode)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "authorization_pending", errorCode(t, body))

	status, body = get(t, auth.VerificationURIComplete)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-state="have_code"`)
	assert.Contains(t, body, "Terminal is requesting access to your Contoso account.")

	status, body = get(t, r.URL+"/redirect?state="+auth.UserCode+"&code=xyz")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Device Authorized")

	reqs := up.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "authorization_code", reqs[0].Get("grant_type"))
	assert.Equal(t, "xyz", reqs[0].Get("code"))
	assert.Equal(t, "abc", reqs[0].Get("client_id"))
	assert.Equal(t, r.URL+"/redirect", reqs[0].Get("redirect_uri"))
	assert.Equal(t, "s3cret", reqs[0].Get("client_secret"))

	status, body = r.poll(t, auth.DeviceCode)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, tokenBody, body)

	status, body = r.poll(t, auth.DeviceCode)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "expired_token", errorCode(t, body))

	// a replayed callback for a consumed code is dropped
	status, body = get(t, r.URL+"/redirect?state="+auth.UserCode+"&code=xyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
	assert.Len(t, up.requests(), 1)
}

func TestDeviceFlowDenied(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{}`)
	r := newRelay(t, testConfig())
	auth := r.issue(t, up)

	status, body := get(t, r.URL+"/redirect?state="+auth.UserCode+"&error=access_denied")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Authorization Failed")
	assert.Empty(t, up.requests())

	status, body = r.poll(t, auth.DeviceCode)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"access_denied"}`, body)
}

func TestDeviceFlowUpstreamError(t *testing.T) {
	const errBody = `{"error":"invalid_grant","error_description":"code expired"}`
	up := newUpstream(t, http.StatusBadRequest, errBody)
	r := newRelay(t, testConfig())
	auth := r.issue(t, up)

	status, _ := get(t, r.URL+"/redirect?state="+auth.UserCode+"&code=stale")
	require.Equal(t, http.StatusOK, status)

	status, body := r.poll(t, auth.DeviceCode)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errBody, body)
}

func TestTokenEndpointErrors(t *testing.T) {
	r := newRelay(t, testConfig())

	status, body := r.poll(t, "doesnotexist")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "expired_token", errorCode(t, body))

	status, body = postForm(t, r.URL+"/token", url.Values{"device_code": {"x"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errorCode(t, body))

	status, body = postForm(t, r.URL+"/token", url.Values{"grant_type": {"refresh_token"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", errorCode(t, body))
}

func TestTokenRelay(t *testing.T) {
	const refreshed = `{"access_token":"T2","token_type":"Bearer"}`
	up := newUpstream(t, http.StatusOK, refreshed)
	r := newRelay(t, testConfig())

	status, body := postForm(t, r.URL+"/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {"R"},
		"client_id":     {"abc"},
		"token_uri":     {up.URL + "/token"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, refreshed, body)

	reqs := up.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "refresh_token", reqs[0].Get("grant_type"))
	assert.Equal(t, "R", reqs[0].Get("refresh_token"))
	_, hasTokenURI := reqs[0]["token_uri"]
	assert.False(t, hasTokenURI)
}

func TestVerificationPage(t *testing.T) {
	r := newRelay(t, testConfig())

	status, body := get(t, r.URL+"/device")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-state="no_code"`)

	status, body = get(t, r.URL+"/device?code=HJKMNPRT")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-state="invalid_code"`)
}

func TestPreflight(t *testing.T) {
	r := newRelay(t, testConfig())

	for _, path := range []string{"/devicecode", "/token"} {
		req, err := http.NewRequest(http.MethodOptions, r.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestCustomPaths(t *testing.T) {
	cfg := testConfig()
	cfg.DeviceCodePath = "/oauth/device/code"
	cfg.VerificationPath = "/activate"
	cfg.RedirectPath = "/oauth/callback"
	cfg.TokenPath = "/oauth/token"

	up := newUpstream(t, http.StatusOK, `{"access_token":"T"}`)
	r := newRelay(t, cfg)

	status, body := postForm(t, r.URL+"/oauth/device/code", url.Values{
		"client_id":     {"abc"},
		"scope":         {"openid"},
		"client_name":   {"Terminal"},
		"service_name":  {"Contoso"},
		"authroize_url": {"https://login.example.com/authorize"},
		"token_url":     {up.URL},
	})
	require.Equal(t, http.StatusOK, status, body)

	var auth deviceflow.Authorization
	require.NoError(t, json.Unmarshal([]byte(body), &auth))
	assert.Equal(t, r.URL+"/activate", auth.VerificationURI)

	_, page := get(t, auth.VerificationURIComplete)
	assert.Contains(t, page, url.QueryEscape(r.URL+"/oauth/callback"))
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRelay(t, testConfig())

	status, body := get(t, r.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"healthy"`)

	status, body = get(t, r.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "device_relay_http_requests_total")

	require.NoError(t, r.store.Close())
	status, _ = get(t, r.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestWebScript(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(file, []byte("console.log('relay')"), 0o600))

	cfg := testConfig()
	cfg.WebScriptPath = "/static/app.js"
	cfg.WebScriptFile = file
	r := newRelay(t, cfg)

	status, body := get(t, r.URL+"/static/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log('relay')", body)

	_, page := get(t, r.URL+"/device")
	assert.Contains(t, page, `<script src="/static/app.js"></script>`)
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	m := metrics.New()
	store := deviceflow.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	srv, err := newServer(cfg, deviceflow.NewOrchestrator(store, oauth.NewClient()), m, zerolog.New(&buf))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request", entry["message"])
	assert.Equal(t, "/health", entry["path"])
	assert.EqualValues(t, 200, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "redis with url", mutate: func(c *Config) {
			c.Store = storeRedis
			c.RedisURL = "redis://localhost:6379/0"
		}},
		{name: "redis without url", mutate: func(c *Config) { c.Store = storeRedis }, wantErr: "REDIS_URL is required"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "etcd" }, wantErr: "STORE must be"},
		{name: "relative path", mutate: func(c *Config) { c.TokenPath = "token" }, wantErr: "TOKEN_PATH must start with /"},
		{name: "script path alone", mutate: func(c *Config) { c.WebScriptPath = "/app.js" }, wantErr: "must be set together"},
		{name: "zero interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "REDIS_URL", "TOKEN_PATH", "DEVICE_CODE_EXPIRE_IN", "WEB_SCRIPT_PATH", "WEB_SCRIPT_FILE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("POLLING_INTERVAL", "2s")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, storeMemory, cfg.Store)
	assert.Equal(t, 900*time.Second, cfg.CodeExpiry)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, deviceflow.DefaultEndpoints(), cfg.Endpoints())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.LogLevel = "WARN"
	logger, err := newLogger(cfg, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	cfg.LogFormat = "logfmt"
	_, err = newLogger(cfg, &buf)
	assert.Error(t, err)

	cfg.LogFormat = "console"
	cfg.LogLevel = "verbose"
	_, err = newLogger(cfg, &buf)
	assert.Error(t, err)

	cfg.LogLevel = "debug"
	logger, err = newLogger(cfg, &buf)
	require.NoError(t, err)
	buf.Reset()
	logger.Debug().Msg("console line")
	assert.True(t, strings.Contains(buf.String(), "console line"))
}
