package deviceflow

import (
	"errors"
	"fmt"
)

// Common errors that may occur during the device authorization flow
var (
	// ErrInvalidDeviceCode indicates a missing or malformed device code
	ErrInvalidDeviceCode = errors.New("invalid device code")

	// ErrInvalidUserCode indicates an unknown or expired user code
	ErrInvalidUserCode = errors.New("invalid user code")

	// ErrPendingAuthorization indicates the user has not finished at the authorization server
	ErrPendingAuthorization = errors.New("authorization pending")

	// ErrExpiredToken covers device codes that expired, were consumed, or never existed
	ErrExpiredToken = errors.New("device code expired")

	// ErrCodeCollision is returned by Store.Add when either code is already live
	ErrCodeCollision = errors.New("code already in use")

	// ErrAlreadyResolved is returned when a resolution is written twice
	ErrAlreadyResolved = errors.New("authorization already resolved")

	// ErrMissingState indicates a redirect callback without a state parameter
	ErrMissingState = errors.New("callback missing state")

	// ErrMissingCode indicates a redirect callback with neither code nor error
	ErrMissingCode = errors.New("callback missing code")

	// ErrInvalidParams indicates authorize or token parameters that are not a flat JSON object
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrStoreUnhealthy indicates the store is not available
	ErrStoreUnhealthy = errors.New("store unhealthy")
)

// OAuth error codes per RFC 6749 section 5.2 and RFC 8628 section 3.5
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeServerError          = "server_error"
)

// DeviceFlowError is an error that maps directly onto an OAuth error response
type DeviceFlowError struct {
	Code        string
	Description string
}

func (e *DeviceFlowError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewDeviceFlowError creates a DeviceFlowError
func NewDeviceFlowError(code, description string) *DeviceFlowError {
	return &DeviceFlowError{Code: code, Description: description}
}

func invalidRequest(format string, args ...any) *DeviceFlowError {
	return NewDeviceFlowError(ErrorCodeInvalidRequest, fmt.Sprintf(format, args...))
}
