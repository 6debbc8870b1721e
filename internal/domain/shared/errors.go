package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound           = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput       = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrAuthExpired        = NewDomainError("AUTH_EXPIRED", "Access token has expired")
	ErrRefreshExpired     = NewDomainError("REFRESH_EXPIRED", "Refresh token has expired")
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "Invalid username or password")
	ErrPermissionDenied   = NewDomainError("PERMISSION_DENIED", "Not authorized to perform this action")
	ErrServerError        = NewDomainError("SERVER_ERROR", "Server error, please retry later")
	ErrNetworkUnreachable = NewDomainError("NETWORK_UNREACHABLE", "Network connection error")
	ErrInvalidState       = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrNotAuthenticated   = NewDomainError("NOT_AUTHENTICATED", "No active session")
)

// APIError is the structured error envelope returned by the backend:
// {"error": {"code": "...", "message": "...", "details": {...}}}
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// UserMessage extracts a user-facing message from an error, falling back
// to the given default when the error carries no structured message.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var domErr *DomainError
	if errors.As(err, &domErr) && domErr.Message != "" {
		return domErr.Message
	}
	return fallback
}
