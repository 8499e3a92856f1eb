//go:build !wasm
// +build !wasm

package gae

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"

	auth "github.com/prkng/auth"
)

// UserEntity is the Datastore entity for users, keyed by user id
type UserEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Email     string         `datastore:"email"`
	Name      string         `datastore:"name,noindex"`
	FirstName string         `datastore:"first_name,noindex"`
	LastName  string         `datastore:"last_name,noindex"`
	Gender    string         `datastore:"gender,noindex"`
	ImageURL  string         `datastore:"image_url,noindex"`
	APIKey    string         `datastore:"apikey"`
	CreatedAt time.Time      `datastore:"created_at"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *auth.User {
	return &auth.User{
		ID:        e.Key.Name,
		Email:     e.Email,
		Name:      e.Name,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Gender:    e.Gender,
		ImageURL:  e.ImageURL,
		APIKey:    e.APIKey,
		Created:   e.CreatedAt,
	}
}

func UserToEntity(u *auth.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:       key,
		Email:     u.Email,
		Name:      u.Name,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		ImageURL:  u.ImageURL,
		APIKey:    u.APIKey,
		CreatedAt: u.Created,
		UpdatedAt: time.Now(),
	}
}

// EmailEntity reserves an email for one user. Its key is the normalized
// email, which makes the reservation unique inside a transaction.
type EmailEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

// AuthMethodEntity is the Datastore entity for auth methods, keyed by auth id
type AuthMethodEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	UserID       string         `datastore:"user_id"`
	Name         string         `datastore:"name,noindex"`
	Email        string         `datastore:"email"`
	AuthType     string         `datastore:"auth_type"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	Profile      []byte         `datastore:"profile,noindex"` // JSON encoded
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

func (e *AuthMethodEntity) ToAuthMethod() (*auth.AuthMethod, error) {
	var profile map[string]any
	if e.Profile != nil {
		if err := json.Unmarshal(e.Profile, &profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile of %s: %w", e.Key.Name, err)
		}
	}
	return &auth.AuthMethod{
		AuthID:       e.Key.Name,
		UserID:       e.UserID,
		Name:         e.Name,
		Email:        e.Email,
		Type:         auth.AuthType(e.AuthType),
		PasswordHash: e.PasswordHash,
		Profile:      profile,
		Created:      e.CreatedAt,
	}, nil
}

func AuthMethodToEntity(m *auth.AuthMethod, key *datastore.Key) (*AuthMethodEntity, error) {
	var profile []byte
	if m.Profile != nil {
		var err error
		if profile, err = json.Marshal(m.Profile); err != nil {
			return nil, fmt.Errorf("failed to encode profile of %s: %w", m.AuthID, err)
		}
	}
	return &AuthMethodEntity{
		Key:          key,
		UserID:       m.UserID,
		Name:         m.Name,
		Email:        m.Email,
		AuthType:     string(m.Type),
		PasswordHash: m.PasswordHash,
		Profile:      profile,
		CreatedAt:    m.Created,
		UpdatedAt:    time.Now(),
	}, nil
}
