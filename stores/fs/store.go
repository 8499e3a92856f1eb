// Package fs provides a file backed auth.Store.
//
// It needs nothing but a writable directory, which makes it the default for
// development and single node deployments. Uniqueness of emails and auth
// ids holds across processes sharing the directory.
package fs

import (
	"fmt"
	"os"

	auth "github.com/prkng/auth"
)

// Store combines the user and auth method stores rooted at one directory
type Store struct {
	*FSUserStore
	*FSAuthMethodStore
}

var _ auth.Store = (*Store)(nil)

// NewStore creates the storage directory if needed
func NewStore(storagePath string) (*Store, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", storagePath, err)
	}
	return &Store{
		FSUserStore:       NewFSUserStore(storagePath),
		FSAuthMethodStore: NewFSAuthMethodStore(storagePath),
	}, nil
}
