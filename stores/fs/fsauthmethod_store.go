package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	auth "github.com/prkng/auth"
)

// FSAuthMethod is the on-disk form of an auth method. Unlike the domain
// type it carries the password hash and provider snapshot.
type FSAuthMethod struct {
	AuthID       string         `json:"auth_id"`
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Type         auth.AuthType  `json:"auth_type"`
	PasswordHash string         `json:"password_hash,omitempty"`
	Profile      map[string]any `json:"profile,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (m *FSAuthMethod) toAuthMethod() *auth.AuthMethod {
	return &auth.AuthMethod{
		AuthID:       m.AuthID,
		UserID:       m.UserID,
		Name:         m.Name,
		Email:        m.Email,
		Type:         m.Type,
		PasswordHash: m.PasswordHash,
		Profile:      m.Profile,
		Created:      m.CreatedAt,
	}
}

func fromAuthMethod(m *auth.AuthMethod) *FSAuthMethod {
	return &FSAuthMethod{
		AuthID:       m.AuthID,
		UserID:       m.UserID,
		Name:         m.Name,
		Email:        m.Email,
		Type:         m.Type,
		PasswordHash: m.PasswordHash,
		Profile:      m.Profile,
		CreatedAt:    m.Created,
		UpdatedAt:    time.Now().UTC(),
	}
}

// FSAuthMethodStore stores auth methods as JSON files under
// {StoragePath}/auth_methods/, one file per auth id.
type FSAuthMethodStore struct {
	StoragePath string
	mu          sync.RWMutex
}

func NewFSAuthMethodStore(storagePath string) *FSAuthMethodStore {
	return &FSAuthMethodStore{StoragePath: storagePath}
}

func (s *FSAuthMethodStore) methodsDir() string {
	return filepath.Join(s.StoragePath, "auth_methods")
}

func (s *FSAuthMethodStore) methodPath(authID string) string {
	return filepath.Join(s.methodsDir(), safeName(authID))
}

func (s *FSAuthMethodStore) CreateAuthMethod(ctx context.Context, method *auth.AuthMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createExclusive(s.methodPath(method.AuthID), fromAuthMethod(method))
}

func (s *FSAuthMethodStore) GetAuthMethod(ctx context.Context, authID string) (*auth.AuthMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m FSAuthMethod
	if err := readJSON(s.methodPath(authID), &m); err != nil {
		return nil, err
	}
	return m.toAuthMethod(), nil
}

func (s *FSAuthMethodStore) UpdateAuthMethod(ctx context.Context, method *auth.AuthMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old FSAuthMethod
	if err := readJSON(s.methodPath(method.AuthID), &old); err != nil {
		return err
	}
	rec := fromAuthMethod(method)
	rec.CreatedAt = old.CreatedAt
	if err := writeJSON(s.methodPath(method.AuthID), rec); err != nil {
		return fmt.Errorf("failed to save auth method %s: %w", method.AuthID, err)
	}
	return nil
}

func (s *FSAuthMethodStore) GetUserAuthMethods(ctx context.Context, userID string) ([]*auth.AuthMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.methodsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*auth.AuthMethod{}, nil
		}
		return nil, err
	}

	methods := []*auth.AuthMethod{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.methodsDir(), entry.Name()))
		if err != nil {
			continue
		}
		var m FSAuthMethod
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if m.UserID == userID {
			methods = append(methods, m.toAuthMethod())
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Created.Before(methods[j].Created)
	})
	return methods, nil
}
