package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// AuthType names the mechanism behind an AuthMethod
type AuthType string

const (
	AuthTypeEmail    AuthType = "email"
	AuthTypeFacebook AuthType = "facebook"
	AuthTypeGoogle   AuthType = "google"
)

// Store level errors. Backends must return (or wrap) these so callers can
// tell a missing row from a uniqueness violation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// User is the canonical identity, one per normalized email
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    string    `json:"gender"`
	ImageURL  string    `json:"image_url"`
	APIKey    string    `json:"apikey"`
	Created   time.Time `json:"created"`
}

// AuthMethod binds one authentication mechanism to a User
type AuthMethod struct {
	AuthID       string         `json:"auth_id"` // "{provider}${provider_user_id}"
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Type         AuthType       `json:"auth_type"`
	PasswordHash string         `json:"-"`
	Profile      map[string]any `json:"-"` // provider snapshot at bind time
	Created      time.Time      `json:"created"`
}

// UserStore manages canonical users.
//
// CreateUser must fail with ErrDuplicate when the email (or id) is taken;
// this constraint is what closes the concurrent sign-up race.
type UserStore interface {
	// CreateUser inserts a new user. Email must already be normalized.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by its surrogate key
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by normalized email
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByAPIKey retrieves the user currently holding the apikey
	GetUserByAPIKey(ctx context.Context, apikey string) (*User, error)

	// UpdateUser saves profile fields and apikey of an existing user.
	// Returns ErrDuplicate when the new email belongs to someone else.
	UpdateUser(ctx context.Context, user *User) error
}

// AuthMethodStore manages the per-provider bindings
type AuthMethodStore interface {
	// CreateAuthMethod inserts a binding, ErrDuplicate when AuthID exists
	CreateAuthMethod(ctx context.Context, method *AuthMethod) error

	// GetAuthMethod retrieves a binding by auth id
	GetAuthMethod(ctx context.Context, authID string) (*AuthMethod, error)

	// UpdateAuthMethod saves the password hash and profile of a binding
	UpdateAuthMethod(ctx context.Context, method *AuthMethod) error

	// GetUserAuthMethods lists all bindings owned by a user
	GetUserAuthMethods(ctx context.Context, userID string) ([]*AuthMethod, error)
}

// Store is the credential store the service works against
type Store interface {
	UserStore
	AuthMethodStore
}

// NormalizeEmail returns the cross-provider join key for an email
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MakeAuthID builds the composite key of an AuthMethod
func MakeAuthID(provider AuthType, providerUserID string) string {
	return string(provider) + "$" + providerUserID
}

// EmailAuthID is the auth id of a user's password method
func EmailAuthID(userID string) string {
	return MakeAuthID(AuthTypeEmail, userID)
}

// View returns the public projection of the user
func (u *User) View(authID string) *UserView {
	return &UserView{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Gender:   u.Gender,
		ImageURL: u.ImageURL,
		APIKey:   u.APIKey,
		AuthID:   authID,
	}
}

// UserView is the shape returned to callers. Password hashes and provider
// snapshots never appear here.
type UserView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	ImageURL string `json:"image_url"`
	APIKey   string `json:"apikey"`
	AuthID   string `json:"auth_id"`
}
