package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultAPIKeyHeader carries the apikey issued at sign-in
const DefaultAPIKeyHeader = "X-API-KEY"

// UserResolver is what the middleware needs to turn credentials into users
type UserResolver interface {
	AuthenticateAPIKey(ctx context.Context, apikey string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
}

type Middleware struct {
	Resolver     UserResolver
	Binder       *Binder
	APIKeyHeader string
	Logger       *slog.Logger
}

// EnsureReasonableDefaults fills in unset fields
func (m *Middleware) EnsureReasonableDefaults() {
	if m.APIKeyHeader == "" {
		m.APIKeyHeader = DefaultAPIKeyHeader
	}
	if m.Logger == nil {
		m.Logger = slog.Default()
	}
}

// Authenticate installs a Principal in the request context and fills it
// from the apikey header, a bearer token, or the session, in that order.
// It never rejects a request; use RequireUser for that.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, p := NewContext(r.Context())
		if user, authID := m.resolve(ctx, r); user != nil {
			p.set(user, authID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser answers 401 unless a user has been bound by Authenticate
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			writeError(w, ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) resolve(ctx context.Context, r *http.Request) (*User, string) {
	apikey := r.Header.Get(m.APIKeyHeader)
	if apikey == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			apikey = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if apikey != "" {
		user, err := m.Resolver.AuthenticateAPIKey(ctx, apikey)
		if err == nil {
			return user, ""
		}
		if !errors.Is(err, ErrUnauthorized) {
			m.Logger.WarnContext(ctx, "error resolving apikey", "error", err)
		}
	}

	userID := m.Binder.SessionUserID(ctx)
	if userID == "" {
		return nil, ""
	}
	user, err := m.Resolver.UserByID(ctx, userID)
	if err != nil {
		m.Logger.WarnContext(ctx, "session user not found", "user_id", userID, "error", err)
		return nil, ""
	}
	return user, ""
}
