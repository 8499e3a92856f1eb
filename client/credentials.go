// Package client is a Go client for the prkng auth HTTP API. It signs in,
// keeps the issued apikey in a CredentialStore and sends it on every later
// request.
package client

import (
	"sync"
	"time"
)

// ServerCredential holds the apikey issued by a single server
type ServerCredential struct {
	APIKey    string    `json:"apikey"`
	UserID    string    `json:"user_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	AuthID    string    `json:"auth_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialStore defines the interface for storing and retrieving credentials
type CredentialStore interface {
	// GetCredential retrieves a credential for a server URL
	// Returns nil, nil if no credential exists for the server
	GetCredential(serverURL string) (*ServerCredential, error)

	// SetCredential stores a credential for a server URL
	SetCredential(serverURL string, cred *ServerCredential) error

	// RemoveCredential removes a credential for a server URL
	RemoveCredential(serverURL string) error

	// ListServers returns all server URLs with stored credentials
	ListServers() ([]string, error)

	// Save persists any pending changes (for stores that batch writes)
	Save() error
}

// MemoryCredentialStore keeps credentials for the life of the process
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	servers map[string]*ServerCredential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{servers: make(map[string]*ServerCredential)}
}

func (s *MemoryCredentialStore) GetCredential(serverURL string) (*ServerCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.servers[serverURL], nil
}

func (s *MemoryCredentialStore) SetCredential(serverURL string, cred *ServerCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[serverURL] = cred
	return nil
}

func (s *MemoryCredentialStore) RemoveCredential(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.servers, serverURL)
	return nil
}

func (s *MemoryCredentialStore) ListServers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	servers := make([]string, 0, len(s.servers))
	for k := range s.servers {
		servers = append(servers, k)
	}
	return servers, nil
}

func (s *MemoryCredentialStore) Save() error { return nil }
