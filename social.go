package auth

import (
	"context"
	"errors"
)

// SignInFacebook verifies a Facebook access token and signs in the owner,
// creating or linking the account on first use.
func (s *Service) SignInFacebook(ctx context.Context, accessToken string) (*UserView, error) {
	return s.signInWith(ctx, AuthTypeFacebook, s.facebook, accessToken)
}

// SignInGoogle does the same for a Google ID token or legacy access token
func (s *Service) SignInGoogle(ctx context.Context, accessToken string) (*UserView, error) {
	return s.signInWith(ctx, AuthTypeGoogle, s.google, accessToken)
}

func (s *Service) signInWith(ctx context.Context, provider AuthType, verifier Verifier, token string) (*UserView, error) {
	if verifier == nil {
		return nil, ErrNotConfigured
	}

	ident, err := verifier.Verify(ctx, token)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, s.signInFailed(ctx, provider, authErr)
		}
		return nil, err
	}

	user, authID, err := s.reconciler.Reconcile(ctx, ident)
	if err != nil {
		return nil, err
	}
	if err := s.binder.Bind(ctx, user, authID); err != nil {
		return nil, err
	}
	return user.View(authID), nil
}
