// Package test provides a stub deviceflow.Flow for handler tests
package test

import (
	"context"
	"net/url"

	"github.com/wrale/oauth2-device-relay/internal/deviceflow"
)

// MockFlow provides a full implementation of deviceflow.Flow for testing
type MockFlow struct {
	IssueFunc       func(ctx context.Context, baseURL string, req deviceflow.IssueRequest) (*deviceflow.Authorization, error)
	VerifyFunc      func(ctx context.Context, baseURL, userCode string) (*deviceflow.Verification, error)
	CallbackFunc    func(ctx context.Context, baseURL string, query url.Values) (*deviceflow.Resolution, error)
	PollFunc        func(ctx context.Context, deviceCode string) (*deviceflow.Resolution, error)
	RelayFunc       func(ctx context.Context, form url.Values) (*deviceflow.Resolution, error)
	CheckHealthFunc func(ctx context.Context) error
}

// Ensure MockFlow implements Flow interface
var _ deviceflow.Flow = (*MockFlow)(nil)

// Issue implements deviceflow.Flow
func (m *MockFlow) Issue(ctx context.Context, baseURL string, req deviceflow.IssueRequest) (*deviceflow.Authorization, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, baseURL, req)
	}
	return nil, nil
}

// Verify implements deviceflow.Flow
func (m *MockFlow) Verify(ctx context.Context, baseURL, userCode string) (*deviceflow.Verification, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, baseURL, userCode)
	}
	return nil, deviceflow.ErrInvalidUserCode
}

// Callback implements deviceflow.Flow
func (m *MockFlow) Callback(ctx context.Context, baseURL string, query url.Values) (*deviceflow.Resolution, error) {
	if m.CallbackFunc != nil {
		return m.CallbackFunc(ctx, baseURL, query)
	}
	return nil, deviceflow.ErrInvalidUserCode
}

// Poll implements deviceflow.Flow
func (m *MockFlow) Poll(ctx context.Context, deviceCode string) (*deviceflow.Resolution, error) {
	if m.PollFunc != nil {
		return m.PollFunc(ctx, deviceCode)
	}
	return nil, deviceflow.ErrPendingAuthorization
}

// Relay implements deviceflow.Flow
func (m *MockFlow) Relay(ctx context.Context, form url.Values) (*deviceflow.Resolution, error) {
	if m.RelayFunc != nil {
		return m.RelayFunc(ctx, form)
	}
	return nil, nil
}

// CheckHealth implements deviceflow.Flow
func (m *MockFlow) CheckHealth(ctx context.Context) error {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx)
	}
	return nil
}
