package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	auth "github.com/prkng/auth"
)

// FSUser is the on-disk form of a user
type FSUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Gender    string    `json:"gender"`
	ImageURL  string    `json:"image_url"`
	APIKey    string    `json:"apikey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *FSUser) toUser() *auth.User {
	return &auth.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		ImageURL:  u.ImageURL,
		APIKey:    u.APIKey,
		Created:   u.CreatedAt,
	}
}

func fromUser(u *auth.User) *FSUser {
	return &FSUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		ImageURL:  u.ImageURL,
		APIKey:    u.APIKey,
		CreatedAt: u.Created,
		UpdatedAt: time.Now().UTC(),
	}
}

// FSUserStore stores users as JSON files.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/{id}.json        # full record
//	├── emails/{email}.json    # {"user_id": ...}, unique
//	└── apikeys/{apikey}.json  # {"user_id": ...}
//
// Email index files are created with O_EXCL, so two processes racing to
// register the same email cannot both succeed. Within a process the mutex
// serializes writers.
type FSUserStore struct {
	StoragePath string
	mu          sync.RWMutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) userPath(id string) string {
	return filepath.Join(s.StoragePath, "users", safeName(id))
}

func (s *FSUserStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", safeName(email))
}

func (s *FSUserStore) apikeyPath(apikey string) string {
	return filepath.Join(s.StoragePath, "apikeys", safeName(apikey))
}

func (s *FSUserStore) CreateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.userPath(user.ID)); err == nil {
		return auth.ErrDuplicate
	}
	if err := createExclusive(s.emailPath(user.Email), indexEntry{UserID: user.ID}); err != nil {
		return err
	}
	if err := writeJSON(s.userPath(user.ID), fromUser(user)); err != nil {
		removeIfExists(s.emailPath(user.Email))
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	if user.APIKey != "" {
		if err := writeJSON(s.apikeyPath(user.APIKey), indexEntry{UserID: user.ID}); err != nil {
			return fmt.Errorf("failed to index apikey: %w", err)
		}
	}
	return nil
}

func (s *FSUserStore) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, err := s.readUser(id)
	if err != nil {
		return nil, err
	}
	return u.toUser(), nil
}

func (s *FSUserStore) readUser(id string) (*FSUser, error) {
	var u FSUser
	if err := readJSON(s.userPath(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *FSUserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var idx indexEntry
	if err := readJSON(s.emailPath(email), &idx); err != nil {
		return nil, err
	}
	u, err := s.readUser(idx.UserID)
	if err != nil {
		return nil, err
	}
	if u.Email != email {
		return nil, auth.ErrNotFound
	}
	return u.toUser(), nil
}

func (s *FSUserStore) GetUserByAPIKey(ctx context.Context, apikey string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var idx indexEntry
	if err := readJSON(s.apikeyPath(apikey), &idx); err != nil {
		return nil, err
	}
	u, err := s.readUser(idx.UserID)
	if err != nil {
		return nil, err
	}
	// index entries of rotated keys may linger
	if u.APIKey != apikey {
		return nil, auth.ErrNotFound
	}
	return u.toUser(), nil
}

func (s *FSUserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.readUser(user.ID)
	if err != nil {
		return err
	}

	if old.Email != user.Email {
		if err := createExclusive(s.emailPath(user.Email), indexEntry{UserID: user.ID}); err != nil {
			return err
		}
	}

	rec := fromUser(user)
	rec.CreatedAt = old.CreatedAt
	if err := writeJSON(s.userPath(user.ID), rec); err != nil {
		if old.Email != user.Email {
			removeIfExists(s.emailPath(user.Email))
		}
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}

	if old.Email != user.Email {
		if err := removeIfExists(s.emailPath(old.Email)); err != nil {
			return err
		}
	}
	if old.APIKey != user.APIKey {
		if user.APIKey != "" {
			if err := writeJSON(s.apikeyPath(user.APIKey), indexEntry{UserID: user.ID}); err != nil {
				return fmt.Errorf("failed to index apikey: %w", err)
			}
		}
		if old.APIKey != "" {
			if err := removeIfExists(s.apikeyPath(old.APIKey)); err != nil {
				return err
			}
		}
	}
	return nil
}
