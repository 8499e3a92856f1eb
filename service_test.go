package auth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/prkng/auth"
)

func newService(t *testing.T, opts ...auth.Option) (*auth.Service, auth.Store) {
	t.Helper()
	store := newStore(t)
	opts = append([]auth.Option{auth.WithHasher(fastHasher)}, opts...)
	return auth.NewService(store, opts...), store
}

func TestService_Register(t *testing.T) {
	svc, store := newService(t)
	ctx, p := auth.NewContext(context.Background())

	view, err := svc.Register(ctx, auth.RegisterParams{
		Email:     " Bob@Example.com",
		Password:  "incrediblepass",
		Name:      "Bob",
		Gender:    "male",
		Birthyear: "1984",
	})
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", view.Email)
	assert.Equal(t, "email$"+view.ID, view.AuthID)
	assert.NotEmpty(t, view.APIKey)
	assert.Equal(t, view.ID, p.User().ID, "register signs the user in")

	method, err := store.GetAuthMethod(ctx, view.AuthID)
	require.NoError(t, err)
	assert.Equal(t, auth.AuthTypeEmail, method.Type)
	assert.Equal(t, "1984", method.Profile["birthyear"])
	assert.True(t, fastHasher.Verify("incrediblepass", method.PasswordHash))
}

func TestService_RegisterConflict(t *testing.T) {
	svc, _ := newService(t, auth.WithFacebook(staticVerifier("fb", facebookIdentity("1", "taken@example.com"))))
	ctx := context.Background()

	_, err := svc.SignInFacebook(ctx, "fb")
	require.NoError(t, err)

	// any provider holding the email blocks registration
	_, err = svc.Register(ctx, auth.RegisterParams{Email: "TAKEN@example.com", Password: "pw"})
	assert.ErrorIs(t, err, auth.ErrConflict)
}

func TestService_SignInEmailFailures(t *testing.T) {
	svc, _ := newService(t, auth.WithFacebook(staticVerifier("fb", facebookIdentity("1", "social@example.com"))))
	ctx := context.Background()

	_, err := svc.SignInEmail(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	_, err = svc.SignInFacebook(ctx, "fb")
	require.NoError(t, err)
	_, err = svc.SignInEmail(ctx, "social@example.com", "pw")
	assert.ErrorIs(t, err, auth.ErrWrongMethod)

	_, err = svc.Register(ctx, auth.RegisterParams{Email: "local@example.com", Password: "right"})
	require.NoError(t, err)
	_, err = svc.SignInEmail(ctx, "local@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
}

func TestService_SignInEmailReissuesAPIKey(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, auth.RegisterParams{Email: "key@example.com", Password: "pw"})
	require.NoError(t, err)

	view, err := svc.SignInEmail(ctx, "Key@Example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, view.ID)
	assert.NotEqual(t, registered.APIKey, view.APIKey)

	_, err = svc.AuthenticateAPIKey(ctx, registered.APIKey)
	assert.ErrorIs(t, err, auth.ErrUnauthorized, "old key is revoked")

	user, err := svc.AuthenticateAPIKey(ctx, view.APIKey)
	require.NoError(t, err)
	assert.Equal(t, view.ID, user.ID)

	stored, err := store.GetUserByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.APIKey, stored.APIKey)
}

func TestService_SocialNotConfigured(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.SignInFacebook(context.Background(), "token")
	assert.ErrorIs(t, err, auth.ErrNotConfigured)
	_, err = svc.SignInGoogle(context.Background(), "token")
	assert.ErrorIs(t, err, auth.ErrNotConfigured)
}

func TestService_VerifierFailureLeavesStoreUntouched(t *testing.T) {
	store := &countingStore{Store: newStore(t)}
	noEmail := auth.VerifierFunc(func(ctx context.Context, token string) (*auth.ProviderIdentity, error) {
		return nil, auth.ErrEmailRequired
	})
	upstream := auth.VerifierFunc(func(ctx context.Context, token string) (*auth.ProviderIdentity, error) {
		return nil, auth.NewProviderError(400, []byte(`{"error":"invalid_token"}`))
	})
	svc := auth.NewService(store, auth.WithFacebook(noEmail), auth.WithGoogle(upstream))
	ctx := context.Background()

	_, err := svc.SignInFacebook(ctx, "token")
	assert.ErrorIs(t, err, auth.ErrEmailRequired)

	_, err = svc.SignInGoogle(ctx, "token")
	var authErr *auth.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 400, authErr.Status)
	assert.JSONEq(t, `{"error":"invalid_token"}`, string(authErr.Body))

	assert.Zero(t, store.writes.Load())
}

func TestService_SignInGoogleTwiceKeepsKey(t *testing.T) {
	svc, _ := newService(t, auth.WithGoogle(staticVerifier("id-token", googleIdentity("g", "g@example.com"))))
	ctx := context.Background()

	first, err := svc.SignInGoogle(ctx, "id-token")
	require.NoError(t, err)
	second, err := svc.SignInGoogle(ctx, "id-token")
	require.NoError(t, err)

	assert.Equal(t, "google$g", second.AuthID)
	assert.Equal(t, first.APIKey, second.APIKey)
}

func TestService_UpdateProfile(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	view, err := svc.Register(ctx, auth.RegisterParams{Email: "up@example.com", Password: "old", Birthyear: "1980"})
	require.NoError(t, err)
	user, err := store.GetUserByID(ctx, view.ID)
	require.NoError(t, err)

	name, email, password, birthyear := "New Name", "Moved@Example.com", "new", "1990"
	updated, err := svc.UpdateProfile(ctx, user, auth.ProfileUpdate{
		Name:      &name,
		Email:     &email,
		Password:  &password,
		Birthyear: &birthyear,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "moved@example.com", updated.Email)

	_, err = svc.SignInEmail(ctx, "up@example.com", "new")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound, "old email no longer resolves")
	_, err = svc.SignInEmail(ctx, "moved@example.com", "old")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	_, err = svc.SignInEmail(ctx, "moved@example.com", "new")
	assert.NoError(t, err)

	method, err := store.GetAuthMethod(ctx, auth.EmailAuthID(view.ID))
	require.NoError(t, err)
	assert.Equal(t, "1990", method.Profile["birthyear"])
}

func TestService_UpdateProfileEmailTaken(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterParams{Email: "one@example.com", Password: "pw"})
	require.NoError(t, err)
	two, err := svc.Register(ctx, auth.RegisterParams{Email: "two@example.com", Password: "pw"})
	require.NoError(t, err)

	user, err := store.GetUserByID(ctx, two.ID)
	require.NoError(t, err)
	email := "one@example.com"
	_, err = svc.UpdateProfile(ctx, user, auth.ProfileUpdate{Email: &email})
	assert.ErrorIs(t, err, auth.ErrConflict)
}

func TestService_UpdateProfileBlankEmail(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	view, err := svc.Register(ctx, auth.RegisterParams{Email: "keep@example.com", Password: "pw"})
	require.NoError(t, err)
	user, err := store.GetUserByID(ctx, view.ID)
	require.NoError(t, err)

	for _, email := range []string{"", "   "} {
		_, err = svc.UpdateProfile(ctx, user, auth.ProfileUpdate{Email: &email})
		assert.ErrorIs(t, err, auth.ErrEmptyEmail)
		assert.Equal(t, http.StatusBadRequest, auth.StatusOf(err))
	}

	stored, err := store.GetUserByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep@example.com", stored.Email)
	_, err = store.GetUserByEmail(ctx, "")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = svc.SignInEmail(ctx, "keep@example.com", "pw")
	assert.NoError(t, err)
}

func TestService_UpdateProfileConflictLeavesUserUnchanged(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterParams{Email: "first@example.com", Password: "pw"})
	require.NoError(t, err)
	second, err := svc.Register(ctx, auth.RegisterParams{Email: "second@example.com", Password: "pw", Name: "Second"})
	require.NoError(t, err)

	user, err := store.GetUserByID(ctx, second.ID)
	require.NoError(t, err)
	email, name := "first@example.com", "Renamed"
	_, err = svc.UpdateProfile(ctx, user, auth.ProfileUpdate{Email: &email, Name: &name})
	require.ErrorIs(t, err, auth.ErrConflict)

	assert.Equal(t, "second@example.com", user.Email)
	assert.Equal(t, "Second", user.Name)
}

func TestService_ProfileWithoutKnownAuthID(t *testing.T) {
	svc, store := newService(t, auth.WithFacebook(staticVerifier("fb", facebookIdentity("8", "late@example.com"))))
	ctx := context.Background()

	view, err := svc.Register(ctx, auth.RegisterParams{Email: "late@example.com", Password: "pw"})
	require.NoError(t, err)
	user, err := store.GetUserByID(ctx, view.ID)
	require.NoError(t, err)

	// apikey or session requests bind the user without an auth id
	profile, err := svc.Profile(auth.WithUser(ctx, user, ""))
	require.NoError(t, err)
	assert.Equal(t, "email$"+view.ID, profile.AuthID)

	_, err = svc.SignInFacebook(ctx, "fb")
	require.NoError(t, err)
	profile, err = svc.Profile(auth.WithUser(ctx, user, ""))
	require.NoError(t, err)
	assert.Equal(t, "facebook$8", profile.AuthID, "most recently bound method")

	profile, err = svc.Profile(auth.WithUser(ctx, user, "email$"+view.ID))
	require.NoError(t, err)
	assert.Equal(t, "email$"+view.ID, profile.AuthID)
}

func TestService_UpdateProfileSocialOnly(t *testing.T) {
	svc, store := newService(t, auth.WithFacebook(staticVerifier("fb", facebookIdentity("5", "fb@example.com"))))
	ctx := context.Background()

	view, err := svc.SignInFacebook(ctx, "fb")
	require.NoError(t, err)
	user, err := store.GetUserByID(ctx, view.ID)
	require.NoError(t, err)

	password, gender := "ignored", "female"
	updated, err := svc.UpdateProfile(ctx, user, auth.ProfileUpdate{Password: &password, Gender: &gender})
	require.NoError(t, err)
	assert.Equal(t, "female", updated.Gender)

	// no password method is created on the way
	_, err = store.GetAuthMethod(ctx, auth.EmailAuthID(view.ID))
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestService_ProfileAndLogout(t *testing.T) {
	svc, _ := newService(t)
	ctx, _ := auth.NewContext(context.Background())

	_, err := svc.Profile(ctx)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	view, err := svc.Register(ctx, auth.RegisterParams{Email: "me@example.com", Password: "pw"})
	require.NoError(t, err)

	profile, err := svc.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, view.ID, profile.ID)
	assert.Equal(t, view.AuthID, profile.AuthID)

	require.NoError(t, svc.Logout(ctx))
	_, err = svc.Profile(ctx)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestService_AuthenticateAPIKeyEmpty(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.AuthenticateAPIKey(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}
