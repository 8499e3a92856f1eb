package auth_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	auth "github.com/prkng/auth"
	"github.com/prkng/auth/stores/fs"
)

func newStore(t *testing.T) *fs.Store {
	t.Helper()
	store, err := fs.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

// fastHasher keeps tests quick
var fastHasher = &auth.PBKDF2Hasher{Rounds: 10}

// staticVerifier accepts exactly one token
func staticVerifier(token string, ident *auth.ProviderIdentity) auth.Verifier {
	return auth.VerifierFunc(func(ctx context.Context, got string) (*auth.ProviderIdentity, error) {
		if got != token {
			return nil, auth.ErrTokenRejected
		}
		cp := *ident
		return &cp, nil
	})
}

func facebookIdentity(id, email string) *auth.ProviderIdentity {
	return &auth.ProviderIdentity{
		Provider:       auth.AuthTypeFacebook,
		ProviderUserID: id,
		Email:          email,
		Name:           "FB Name",
		PictureURL:     "https://graph.example/" + id + ".jpg",
		Profile:        map[string]any{"id": id, "email": email},
	}
}

func googleIdentity(id, email string) *auth.ProviderIdentity {
	return &auth.ProviderIdentity{
		Provider:       auth.AuthTypeGoogle,
		ProviderUserID: id,
		Email:          email,
		Name:           "Google Name",
		PictureURL:     "https://lh3.example/" + id + ".png",
		Profile:        map[string]any{"sub": id},
	}
}

// countingStore records writes made through it
type countingStore struct {
	auth.Store
	writes atomic.Int32
}

func (s *countingStore) CreateUser(ctx context.Context, u *auth.User) error {
	s.writes.Add(1)
	return s.Store.CreateUser(ctx, u)
}

func (s *countingStore) UpdateUser(ctx context.Context, u *auth.User) error {
	s.writes.Add(1)
	return s.Store.UpdateUser(ctx, u)
}

func (s *countingStore) CreateAuthMethod(ctx context.Context, m *auth.AuthMethod) error {
	s.writes.Add(1)
	return s.Store.CreateAuthMethod(ctx, m)
}

func (s *countingStore) UpdateAuthMethod(ctx context.Context, m *auth.AuthMethod) error {
	s.writes.Add(1)
	return s.Store.UpdateAuthMethod(ctx, m)
}
