package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexedwards/scs/v2"
)

// DefaultSessionKey is the session variable holding the logged in user id
const DefaultSessionKey = "loggedInUserId"

type principalKey struct{}

// Principal is the per-request holder of the authenticated user. Middleware
// installs an empty one; the Binder fills it once a sign-in succeeds.
type Principal struct {
	mu     sync.RWMutex
	user   *User
	authID string
}

// User returns the bound user or nil
func (p *Principal) User() *User {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.user
}

// AuthID returns the auth method the user signed in with, if known
func (p *Principal) AuthID() string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authID
}

func (p *Principal) set(user *User, authID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = user
	p.authID = authID
}

// NewContext returns a child context carrying a fresh, empty Principal
func NewContext(ctx context.Context) (context.Context, *Principal) {
	p := &Principal{}
	return context.WithValue(ctx, principalKey{}, p), p
}

// WithUser returns a child context whose Principal is already bound to user.
// Transports that authenticate outside the Binder (gRPC) use this.
func WithUser(ctx context.Context, user *User, authID string) context.Context {
	ctx, p := NewContext(ctx)
	p.set(user, authID)
	return ctx
}

// PrincipalFrom returns the Principal installed in ctx, or nil
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserFrom returns the user bound to ctx, or nil
func UserFrom(ctx context.Context) *User {
	return PrincipalFrom(ctx).User()
}

// Binder marks a resolved user as the active principal of a request.
//
// When Sessions is set, the user id is also written to the scs session so
// later requests can be resolved without presenting credentials again. The
// request context must then have been loaded by Sessions.LoadAndSave.
type Binder struct {
	Sessions   *scs.SessionManager
	SessionKey string
}

func (b *Binder) sessionKey() string {
	if b.SessionKey != "" {
		return b.SessionKey
	}
	return DefaultSessionKey
}

// Bind attaches user to the Principal in ctx and to the session if configured
func (b *Binder) Bind(ctx context.Context, user *User, authID string) error {
	if p := PrincipalFrom(ctx); p != nil {
		p.set(user, authID)
	}
	if b == nil || b.Sessions == nil {
		return nil
	}
	// new token on privilege change
	if err := b.Sessions.RenewToken(ctx); err != nil {
		return fmt.Errorf("failed to renew session: %w", err)
	}
	b.Sessions.Put(ctx, b.sessionKey(), user.ID)
	return nil
}

// Unbind clears the Principal and destroys the session
func (b *Binder) Unbind(ctx context.Context) error {
	if p := PrincipalFrom(ctx); p != nil {
		p.set(nil, "")
	}
	if b == nil || b.Sessions == nil {
		return nil
	}
	return b.Sessions.Destroy(ctx)
}

// SessionUserID returns the user id stored in the session, if any
func (b *Binder) SessionUserID(ctx context.Context) string {
	if b == nil || b.Sessions == nil {
		return ""
	}
	return b.Sessions.GetString(ctx, b.sessionKey())
}
