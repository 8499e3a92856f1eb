package auth

import (
	"context"
	"errors"
	"fmt"
)

// ProfileUpdate lists the fields to change. Nil fields are left untouched.
type ProfileUpdate struct {
	Email     *string
	Password  *string
	Name      *string
	Gender    *string
	Birthyear *string
	ImageURL  *string
}

// UpdateProfile applies a partial update to user. When the user has a
// password method, a supplied password is rehashed and the birthyear kept
// on that method is refreshed.
//
// user is only modified once the store accepted the change. An email that is
// supplied but blank is rejected with ErrEmptyEmail.
func (s *Service) UpdateProfile(ctx context.Context, user *User, update ProfileUpdate) (*UserView, error) {
	updated := *user
	if update.Name != nil {
		updated.Name = *update.Name
	}
	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		if email == "" {
			return nil, ErrEmptyEmail
		}
		updated.Email = email
	}
	if update.Gender != nil {
		updated.Gender = *update.Gender
	}
	if update.ImageURL != nil {
		updated.ImageURL = *update.ImageURL
	}
	if err := s.store.UpdateUser(ctx, &updated); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	*user = updated

	authID := EmailAuthID(user.ID)
	method, err := s.store.GetAuthMethod(ctx, authID)
	if errors.Is(err, ErrNotFound) {
		return user.View(s.authIDFor(ctx, user, PrincipalFrom(ctx).AuthID())), nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up auth method: %w", err)
	}

	if update.Password != nil && *update.Password != "" {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		method.PasswordHash = hash
	}
	if method.Profile == nil {
		method.Profile = make(map[string]any)
	}
	if update.Birthyear != nil {
		method.Profile["birthyear"] = *update.Birthyear
	}
	if err := s.store.UpdateAuthMethod(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to update auth method %s: %w", authID, err)
	}

	return user.View(authID), nil
}

// Profile returns the projection of the user bound to ctx
func (s *Service) Profile(ctx context.Context) (*UserView, error) {
	p := PrincipalFrom(ctx)
	user := p.User()
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user.View(s.authIDFor(ctx, user, p.AuthID())), nil
}

// authIDFor returns known when set. Requests authenticated by apikey or
// session do not carry the method used at sign-in, so the most recently
// bound method of the user stands in for it.
func (s *Service) authIDFor(ctx context.Context, user *User, known string) string {
	if known != "" {
		return known
	}
	methods, err := s.store.GetUserAuthMethods(ctx, user.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list auth methods", "user_id", user.ID, "error", err)
		return ""
	}
	var latest *AuthMethod
	for _, m := range methods {
		if latest == nil || !m.Created.Before(latest.Created) {
			latest = m
		}
	}
	if latest == nil {
		return ""
	}
	return latest.AuthID
}

// Logout clears the binding of the current request and its session
func (s *Service) Logout(ctx context.Context) error {
	return s.binder.Unbind(ctx)
}

// AuthenticateAPIKey resolves a bearer apikey to its user
func (s *Service) AuthenticateAPIKey(ctx context.Context, apikey string) (*User, error) {
	if apikey == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.store.GetUserByAPIKey(ctx, apikey)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up apikey: %w", err)
	}
	return user, nil
}

// UserByID loads a user, used to restore a session binding
func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// Binder returns the binder used to attach users to requests
func (s *Service) Binder() *Binder {
	return s.binder
}
