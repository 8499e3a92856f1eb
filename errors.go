package auth

import (
	"errors"
	"net/http"
)

// Error codes
const (
	ErrCodeConflict          = "conflict"
	ErrCodeAccountNotFound   = "account_not_found"
	ErrCodeWrongMethod       = "wrong_method"
	ErrCodeInvalidCredential = "invalid_credential"
	ErrCodeEmailRequired     = "email_required"
	ErrCodeTokenRejected     = "token_rejected"
	ErrCodeProviderError     = "provider_error"
	ErrCodeNotConfigured     = "not_configured"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeMissingField      = "missing_field"
)

// AuthError is a failure the entry points convert into a (message, status)
// pair for the caller.
type AuthError struct {
	Code    string
	Message string
	Status  int

	// Body holds the upstream response for provider errors, forwarded verbatim
	Body []byte
}

func NewAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}

// NewProviderError reports an upstream failure with the provider's status
// and body.
func NewProviderError(status int, body []byte) *AuthError {
	return &AuthError{
		Code:    ErrCodeProviderError,
		Message: http.StatusText(status),
		Status:  status,
		Body:    body,
	}
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches on the code so wrapped errors compare against the sentinels
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrConflict          = NewAuthError(ErrCodeConflict, "User already exists", http.StatusConflict)
	ErrAccountNotFound   = NewAuthError(ErrCodeAccountNotFound, "Account doesn't exists, please register", http.StatusUnauthorized)
	ErrWrongMethod       = NewAuthError(ErrCodeWrongMethod, "Existing user with google or facebook account, not email", http.StatusUnauthorized)
	ErrInvalidCredential = NewAuthError(ErrCodeInvalidCredential, "Incorrect password", http.StatusUnauthorized)
	ErrEmailRequired     = NewAuthError(ErrCodeEmailRequired, "Email information not provided, cannot register user", http.StatusUnauthorized)
	ErrTokenRejected     = NewAuthError(ErrCodeTokenRejected, "Authentication failed.", http.StatusUnauthorized)
	ErrProvider          = NewAuthError(ErrCodeProviderError, "Provider error", http.StatusBadGateway)
	ErrNotConfigured     = NewAuthError(ErrCodeNotConfigured, "Provider not configured", http.StatusNotImplemented)
	ErrUnauthorized      = NewAuthError(ErrCodeUnauthorized, "Login required", http.StatusUnauthorized)
	ErrEmptyEmail        = NewAuthError(ErrCodeMissingField, "Email cannot be empty", http.StatusBadRequest)
)

// StatusOf maps an error to the status code reported to callers
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the short human readable reason for an error. Internal
// failures are not described to callers.
func MessageOf(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "Internal server error"
}
