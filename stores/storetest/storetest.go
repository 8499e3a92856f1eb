// Package storetest is a conformance suite run against every auth.Store
// backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/prkng/auth"
)

// NewUser returns a user with fresh id and apikey for email
func NewUser(t *testing.T, email string) *auth.User {
	t.Helper()
	apikey, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	return &auth.User{
		ID:       uuid.NewString(),
		Email:    email,
		Name:     "Test User",
		Gender:   "female",
		ImageURL: "https://img.example/" + email,
		APIKey:   apikey,
		Created:  time.Now().UTC().Truncate(time.Second),
	}
}

// Run exercises the store returned by newStore. Every subtest gets a fresh
// store.
func Run(t *testing.T, newStore func(t *testing.T) auth.Store) {
	ctx := context.Background()

	t.Run("CreateAndGetUser", func(t *testing.T) {
		s := newStore(t)
		u := NewUser(t, "alice@example.com")
		require.NoError(t, s.CreateUser(ctx, u))

		byID, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, byID.Email)
		assert.Equal(t, u.Name, byID.Name)
		assert.Equal(t, u.ImageURL, byID.ImageURL)
		assert.Equal(t, u.APIKey, byID.APIKey)

		byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		byKey, err := s.GetUserByAPIKey(ctx, u.APIKey)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byKey.ID)
	})

	t.Run("MissingUser", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetUserByID(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		_, err = s.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		_, err = s.GetUserByAPIKey(ctx, "deadbeef")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, NewUser(t, "bob@example.com")))

		err := s.CreateUser(ctx, NewUser(t, "bob@example.com"))
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})

	t.Run("UpdateUser", func(t *testing.T) {
		s := newStore(t)
		u := NewUser(t, "carol@example.com")
		require.NoError(t, s.CreateUser(ctx, u))
		oldKey := u.APIKey

		newKey, err := auth.GenerateAPIKey()
		require.NoError(t, err)
		u.APIKey = newKey
		u.Name = "Carol"
		u.Email = "carol@new.example"
		require.NoError(t, s.UpdateUser(ctx, u))

		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Carol", got.Name)
		assert.Equal(t, "carol@new.example", got.Email)

		_, err = s.GetUserByEmail(ctx, "carol@example.com")
		assert.ErrorIs(t, err, auth.ErrNotFound, "old email must be released")
		_, err = s.GetUserByAPIKey(ctx, oldKey)
		assert.ErrorIs(t, err, auth.ErrNotFound, "rotated apikey must stop resolving")
		got, err = s.GetUserByAPIKey(ctx, newKey)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		// the released email can be taken by someone else
		require.NoError(t, s.CreateUser(ctx, NewUser(t, "carol@example.com")))
	})

	t.Run("UpdateUserEmailTaken", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateUser(ctx, NewUser(t, "dan@example.com")))
		u := NewUser(t, "erin@example.com")
		require.NoError(t, s.CreateUser(ctx, u))

		u.Email = "dan@example.com"
		assert.ErrorIs(t, s.UpdateUser(ctx, u), auth.ErrDuplicate)

		got, err := s.GetUserByEmail(ctx, "erin@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("UpdateMissingUser", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.UpdateUser(ctx, NewUser(t, "ghost@example.com")), auth.ErrNotFound)
	})

	t.Run("AuthMethods", func(t *testing.T) {
		s := newStore(t)
		u := NewUser(t, "frank@example.com")
		require.NoError(t, s.CreateUser(ctx, u))

		email := &auth.AuthMethod{
			AuthID:       auth.EmailAuthID(u.ID),
			UserID:       u.ID,
			Name:         u.Name,
			Email:        u.Email,
			Type:         auth.AuthTypeEmail,
			PasswordHash: "$pbkdf2-sha256$200$c2FsdA$aGFzaA",
			Profile:      map[string]any{"birthyear": "1984"},
			Created:      time.Now().UTC().Add(-time.Minute),
		}
		fb := &auth.AuthMethod{
			AuthID:  auth.MakeAuthID(auth.AuthTypeFacebook, "10001"),
			UserID:  u.ID,
			Email:   u.Email,
			Type:    auth.AuthTypeFacebook,
			Profile: map[string]any{"id": "10001", "name": "Frank"},
			Created: time.Now().UTC(),
		}
		require.NoError(t, s.CreateAuthMethod(ctx, email))
		require.NoError(t, s.CreateAuthMethod(ctx, fb))
		assert.ErrorIs(t, s.CreateAuthMethod(ctx, fb), auth.ErrDuplicate)

		got, err := s.GetAuthMethod(ctx, email.AuthID)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.UserID)
		assert.Equal(t, auth.AuthTypeEmail, got.Type)
		assert.Equal(t, email.PasswordHash, got.PasswordHash)
		assert.Equal(t, "1984", got.Profile["birthyear"])

		_, err = s.GetAuthMethod(ctx, "google$missing")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		methods, err := s.GetUserAuthMethods(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, methods, 2)
		assert.Equal(t, email.AuthID, methods[0].AuthID)
		assert.Equal(t, fb.AuthID, methods[1].AuthID)

		none, err := s.GetUserAuthMethods(ctx, "someone-else")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("UpdateAuthMethod", func(t *testing.T) {
		s := newStore(t)
		u := NewUser(t, "gina@example.com")
		require.NoError(t, s.CreateUser(ctx, u))
		m := &auth.AuthMethod{
			AuthID:       auth.EmailAuthID(u.ID),
			UserID:       u.ID,
			Email:        u.Email,
			Type:         auth.AuthTypeEmail,
			PasswordHash: "old",
			Created:      time.Now().UTC(),
		}
		require.NoError(t, s.CreateAuthMethod(ctx, m))

		m.PasswordHash = "new"
		m.Profile = map[string]any{"birthyear": "1990"}
		require.NoError(t, s.UpdateAuthMethod(ctx, m))

		got, err := s.GetAuthMethod(ctx, m.AuthID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
		assert.Equal(t, "1990", got.Profile["birthyear"])

		m.AuthID = "email$missing"
		assert.ErrorIs(t, s.UpdateAuthMethod(ctx, m), auth.ErrNotFound)
	})
}
