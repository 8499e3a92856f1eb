// Package auth is the identity layer of the prkng API.
//
// Users can sign in with an email and password, a Facebook access token or
// a Google token (signed ID token or legacy access token). Every credential
// resolves to one canonical User addressed by its lowercase email.
//
// # Architecture
//
// User: the canonical account. Its email is unique and is the key used to
// join identities coming from different providers. A fresh apikey is issued
// on every successful sign-in.
//
// AuthMethod: one binding between a User and a mechanism, named by an auth
// id of the form "{provider}${provider_user_id}" (email$<user id>,
// facebook$<id>, google$<sub>). A user owns at most one method per provider.
//
// Verifier: validates a token against its provider and returns a
// ProviderIdentity. Implementations live in the oauth2 sub-package.
//
// Reconciler: decides whether a verified identity creates a new user, links
// a new method to an existing user, or is already known.
//
// Binder: attaches the resolved user to the request's Principal and,
// optionally, to an scs session.
//
// # Basic Usage
//
//	store, _ := fs.NewStore("/path/to/storage")
//	cfg, _ := auth.LoadConfig(".env")
//	svc := auth.NewService(store,
//	    auth.WithFacebook(oauth2.NewFacebookVerifier(cfg.FacebookAppID, client)),
//	    auth.WithGoogle(oauth2.NewGoogleVerifier(cfg, client)),
//	)
//	http.ListenAndServe(":8080", svc.Handler())
//
// # Store Implementations
//
// The stores sub-packages provide a file based store (fs), a GORM store for
// SQLite and PostgreSQL (gorm) and a Cloud Datastore store (gae). All of
// them enforce uniqueness of emails and auth ids and report violations as
// ErrDuplicate, which the Reconciler relies on to resolve concurrent
// sign-ins for the same new email.
//
// # Security
//
// Passwords are hashed with PBKDF2-SHA256 (200 rounds, 16 byte salt) in the
// "$pbkdf2-sha256$..." format, so digests carry their own parameters.
// Apikeys are 32 random bytes, hex encoded.
package auth
