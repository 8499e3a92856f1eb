package auth_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/prkng/auth"
)

func TestAuthError_IsMatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("sign-in: %w", auth.ErrInvalidCredential)
	assert.ErrorIs(t, wrapped, auth.ErrInvalidCredential)
	assert.NotErrorIs(t, wrapped, auth.ErrAccountNotFound)

	// any provider error matches the sentinel
	assert.ErrorIs(t, auth.NewProviderError(400, []byte(`{}`)), auth.ErrProvider)
}

func TestStatusAndMessage(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{nil, http.StatusOK, "Internal server error"},
		{auth.ErrConflict, http.StatusConflict, "User already exists"},
		{auth.ErrAccountNotFound, http.StatusUnauthorized, "Account doesn't exists, please register"},
		{auth.ErrWrongMethod, http.StatusUnauthorized, "Existing user with google or facebook account, not email"},
		{auth.ErrInvalidCredential, http.StatusUnauthorized, "Incorrect password"},
		{auth.ErrEmailRequired, http.StatusUnauthorized, "Email information not provided, cannot register user"},
		{auth.ErrTokenRejected, http.StatusUnauthorized, "Authentication failed."},
		{auth.ErrEmptyEmail, http.StatusBadRequest, "Email cannot be empty"},
		{auth.ErrNotConfigured, http.StatusNotImplemented, "Provider not configured"},
		{auth.NewProviderError(http.StatusBadRequest, nil), http.StatusBadRequest, "Bad Request"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, auth.StatusOf(tt.err), "%v", tt.err)
		if tt.err != nil {
			assert.Equal(t, tt.message, auth.MessageOf(tt.err))
		}
	}
}
