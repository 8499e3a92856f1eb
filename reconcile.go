package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Reconciler maps a verified provider identity onto a canonical User and an
// AuthMethod, creating or linking as needed.
type Reconciler struct {
	Store  Store
	Logger *slog.Logger
}

func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{Store: store, Logger: logger}
}

// Reconcile returns the user owning ident and the auth id used.
//
// The existence checks are only a fast path: the store's uniqueness
// constraints decide. When a create loses a race against a concurrent
// sign-in the whole lookup is replayed once, at which point the winner's
// rows are seen as existing.
func (r *Reconciler) Reconcile(ctx context.Context, ident *ProviderIdentity) (*User, string, error) {
	user, authID, err := r.reconcile(ctx, ident)
	if errors.Is(err, ErrDuplicate) {
		r.Logger.InfoContext(ctx, "concurrent sign-in detected, retrying",
			"provider", ident.Provider, "auth_id", ident.AuthID())
		user, authID, err = r.reconcile(ctx, ident)
	}
	if err != nil {
		return nil, "", err
	}
	return user, authID, nil
}

func (r *Reconciler) reconcile(ctx context.Context, ident *ProviderIdentity) (*User, string, error) {
	authID := ident.AuthID()
	email := NormalizeEmail(ident.Email)

	knownMethod := true
	if _, err := r.Store.GetAuthMethod(ctx, authID); errors.Is(err, ErrNotFound) {
		knownMethod = false
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to look up auth method: %w", err)
	}

	user, err := r.Store.GetUserByEmail(ctx, email)
	knownUser := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !knownUser {
		user, err = r.createUser(ctx, ident, email)
		if err != nil {
			return nil, "", err
		}
	} else if !knownMethod {
		// existing account, new provider for it
		if err := r.refreshUser(ctx, user, ident, email); err != nil {
			return nil, "", err
		}
	}

	if !knownMethod {
		method := &AuthMethod{
			AuthID:  authID,
			UserID:  user.ID,
			Name:    user.Name,
			Email:   user.Email,
			Type:    ident.Provider,
			Profile: ident.Profile,
			Created: time.Now().UTC(),
		}
		if err := r.Store.CreateAuthMethod(ctx, method); err != nil {
			return nil, "", fmt.Errorf("failed to create auth method %s: %w", authID, err)
		}
		r.Logger.InfoContext(ctx, "linked auth method", "auth_id", authID, "user_id", user.ID)
	}

	return user, authID, nil
}

func (r *Reconciler) createUser(ctx context.Context, ident *ProviderIdentity, email string) (*User, error) {
	apikey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      ident.Name,
		FirstName: ident.FirstName,
		LastName:  ident.LastName,
		Gender:    ident.Gender,
		ImageURL:  ident.PictureURL,
		APIKey:    apikey,
		Created:   time.Now().UTC(),
	}
	if err := r.Store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	r.Logger.InfoContext(ctx, "created user", "user_id", user.ID, "provider", ident.Provider)
	return user, nil
}

// refreshUser reissues the apikey and takes the provider's picture. Google
// is also trusted for name and email.
func (r *Reconciler) refreshUser(ctx context.Context, user *User, ident *ProviderIdentity, email string) error {
	apikey, err := GenerateAPIKey()
	if err != nil {
		return err
	}
	user.APIKey = apikey
	user.ImageURL = ident.PictureURL
	if ident.Provider == AuthTypeGoogle {
		user.Name = ident.Name
		user.Email = email
	}
	if err := r.Store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to refresh user %s: %w", user.ID, err)
	}
	return nil
}
