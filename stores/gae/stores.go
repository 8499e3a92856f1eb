//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	auth "github.com/prkng/auth"
)

// Kind constants for Datastore entities
const (
	KindUser       = "User"
	KindUserEmail  = "UserEmail"
	KindAuthMethod = "AuthMethod"
)

func mapErr(err error) error {
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return auth.ErrNotFound
	}
	return err
}

type base struct {
	client    *datastore.Client
	namespace string
}

func (s *base) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

// exists reports whether key is present, inside tx
func exists(tx *datastore.Transaction, key *datastore.Key, dst any) (bool, error) {
	err := tx.Get(key, dst)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return false, nil
	}
	return false, err
}

// ============================================================================
// UserStore
// ============================================================================

// UserStore implements auth.UserStore using Google Cloud Datastore. Email
// uniqueness is kept by a UserEmail entity written in the same transaction
// as the user.
type UserStore struct {
	base
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{base{client: client, namespace: namespace}}
}

func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	userKey := s.namespacedKey(KindUser, user.ID)
	emailKey := s.namespacedKey(KindUserEmail, user.Email)
	if user.Created.IsZero() {
		user.Created = time.Now()
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if found, err := exists(tx, emailKey, &EmailEntity{}); err != nil {
			return err
		} else if found {
			return auth.ErrDuplicate
		}
		if found, err := exists(tx, userKey, &UserEntity{}); err != nil {
			return err
		} else if found {
			return auth.ErrDuplicate
		}
		if _, err := tx.Put(emailKey, &EmailEntity{UserID: user.ID, CreatedAt: user.Created}); err != nil {
			return err
		}
		_, err := tx.Put(userKey, UserToEntity(user, userKey))
		return err
	})
	return err
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	var entity UserEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUser, id), &entity); err != nil {
		return nil, mapErr(err)
	}
	return entity.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var reservation EmailEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUserEmail, email), &reservation); err != nil {
		return nil, mapErr(err)
	}
	return s.GetUserByID(ctx, reservation.UserID)
}

func (s *UserStore) GetUserByAPIKey(ctx context.Context, apikey string) (*auth.User, error) {
	if apikey == "" {
		return nil, auth.ErrNotFound
	}
	q := datastore.NewQuery(KindUser).
		Namespace(s.namespace).
		FilterField("apikey", "=", apikey).
		Limit(1)

	var entity UserEntity
	it := s.client.Run(ctx, q)
	if _, err := it.Next(&entity); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	userKey := s.namespacedKey(KindUser, user.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UserEntity
		if err := tx.Get(userKey, &existing); err != nil {
			return mapErr(err)
		}

		if existing.Email != user.Email {
			newKey := s.namespacedKey(KindUserEmail, user.Email)
			if found, err := exists(tx, newKey, &EmailEntity{}); err != nil {
				return err
			} else if found {
				return auth.ErrDuplicate
			}
			if err := tx.Delete(s.namespacedKey(KindUserEmail, existing.Email)); err != nil {
				return err
			}
			if _, err := tx.Put(newKey, &EmailEntity{UserID: user.ID, CreatedAt: time.Now()}); err != nil {
				return err
			}
		}

		entity := UserToEntity(user, userKey)
		entity.CreatedAt = existing.CreatedAt
		_, err := tx.Put(userKey, entity)
		return err
	})
	return err
}

// ============================================================================
// AuthMethodStore
// ============================================================================

// AuthMethodStore implements auth.AuthMethodStore using Google Cloud Datastore
type AuthMethodStore struct {
	base
}

// NewAuthMethodStore creates a new Datastore-backed AuthMethodStore
func NewAuthMethodStore(client *datastore.Client, namespace string) *AuthMethodStore {
	return &AuthMethodStore{base{client: client, namespace: namespace}}
}

func (s *AuthMethodStore) CreateAuthMethod(ctx context.Context, method *auth.AuthMethod) error {
	key := s.namespacedKey(KindAuthMethod, method.AuthID)
	if method.Created.IsZero() {
		method.Created = time.Now()
	}
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if found, err := exists(tx, key, &AuthMethodEntity{}); err != nil {
			return err
		} else if found {
			return auth.ErrDuplicate
		}
		entity, err := AuthMethodToEntity(method, key)
		if err != nil {
			return err
		}
		_, err = tx.Put(key, entity)
		return err
	})
	return err
}

func (s *AuthMethodStore) GetAuthMethod(ctx context.Context, authID string) (*auth.AuthMethod, error) {
	var entity AuthMethodEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindAuthMethod, authID), &entity); err != nil {
		return nil, mapErr(err)
	}
	return entity.ToAuthMethod()
}

func (s *AuthMethodStore) UpdateAuthMethod(ctx context.Context, method *auth.AuthMethod) error {
	key := s.namespacedKey(KindAuthMethod, method.AuthID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing AuthMethodEntity
		if err := tx.Get(key, &existing); err != nil {
			return mapErr(err)
		}
		entity, err := AuthMethodToEntity(method, key)
		if err != nil {
			return err
		}
		entity.CreatedAt = existing.CreatedAt
		_, err = tx.Put(key, entity)
		return err
	})
	return err
}

func (s *AuthMethodStore) GetUserAuthMethods(ctx context.Context, userID string) ([]*auth.AuthMethod, error) {
	q := datastore.NewQuery(KindAuthMethod).
		Namespace(s.namespace).
		FilterField("user_id", "=", userID)

	methods := []*auth.AuthMethod{}
	it := s.client.Run(ctx, q)
	for {
		var entity AuthMethodEntity
		_, err := it.Next(&entity)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list auth methods for %s: %w", userID, err)
		}
		method, err := entity.ToAuthMethod()
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	return methods, nil
}

// ============================================================================
// Store
// ============================================================================

// Store combines both Datastore stores in one namespace
type Store struct {
	*UserStore
	*AuthMethodStore
}

var _ auth.Store = (*Store)(nil)

func NewStore(client *datastore.Client, namespace string) *Store {
	return &Store{
		UserStore:       NewUserStore(client, namespace),
		AuthMethodStore: NewAuthMethodStore(client, namespace),
	}
}
