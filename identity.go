package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

// ProviderIdentity is the provider-agnostic result of a successful token
// verification. It is the only thing the Reconciler needs to know about a
// provider.
type ProviderIdentity struct {
	Provider       AuthType
	ProviderUserID string
	Email          string
	Name           string
	FirstName      string
	LastName       string
	Gender         string
	PictureURL     string

	// Profile is the full attribute set the provider reported, snapshotted
	// onto the AuthMethod when it is first bound.
	Profile map[string]any

	// Token is the credential that was verified
	Token *oauth2.Token
}

// AuthID returns the composite auth id for this identity
func (p *ProviderIdentity) AuthID() string {
	return MakeAuthID(p.Provider, p.ProviderUserID)
}

// Verifier validates a presented token against its authority.
//
// Failures are *AuthError values: ErrTokenRejected, ErrEmailRequired or a
// provider error carrying the upstream status and body.
type Verifier interface {
	Verify(ctx context.Context, token string) (*ProviderIdentity, error)
}

// VerifierFunc adapts a function to the Verifier interface
type VerifierFunc func(ctx context.Context, token string) (*ProviderIdentity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*ProviderIdentity, error) {
	return f(ctx, token)
}

// GenerateAPIKey returns a fresh opaque bearer key
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate apikey: %w", err)
	}
	return hex.EncodeToString(b), nil
}
