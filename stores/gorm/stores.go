//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	auth "github.com/prkng/auth"
)

// AutoMigrate runs database migrations for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AuthMethodModel{},
	)
}

// storeError maps driver errors onto the auth store errors. Drivers only
// translate unique violations into gorm.ErrDuplicatedKey when the DB was
// opened with TranslateError, so the message is checked as well.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return auth.ErrDuplicate
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %s", auth.ErrDuplicate, msg)
	}
	return err
}

// =============================================================================
// UserStore
// =============================================================================

// UserStore implements auth.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	model := UserToModel(user)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return storeError(err)
	}
	user.Created = model.CreatedAt
	return nil
}

func (s *UserStore) getUser(ctx context.Context, query string, arg any) (*auth.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		return nil, storeError(err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*auth.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *UserStore) GetUserByAPIKey(ctx context.Context, apikey string) (*auth.User, error) {
	if apikey == "" {
		return nil, auth.ErrNotFound
	}
	return s.getUser(ctx, "apikey = ?", apikey)
}

func (s *UserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"email":      user.Email,
			"name":       user.Name,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"gender":     user.Gender,
			"image_url":  user.ImageURL,
			"apikey":     user.APIKey,
		})
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// =============================================================================
// AuthMethodStore
// =============================================================================

// AuthMethodStore implements auth.AuthMethodStore using GORM
type AuthMethodStore struct {
	db *gorm.DB
}

func NewAuthMethodStore(db *gorm.DB) *AuthMethodStore {
	return &AuthMethodStore{db: db}
}

func (s *AuthMethodStore) CreateAuthMethod(ctx context.Context, method *auth.AuthMethod) error {
	model := AuthMethodToModel(method)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return storeError(err)
	}
	method.Created = model.CreatedAt
	return nil
}

func (s *AuthMethodStore) GetAuthMethod(ctx context.Context, authID string) (*auth.AuthMethod, error) {
	var model AuthMethodModel
	if err := s.db.WithContext(ctx).First(&model, "auth_id = ?", authID).Error; err != nil {
		return nil, storeError(err)
	}
	return model.ToAuthMethod(), nil
}

func (s *AuthMethodStore) UpdateAuthMethod(ctx context.Context, method *auth.AuthMethod) error {
	result := s.db.WithContext(ctx).Model(&AuthMethodModel{}).
		Where("auth_id = ?", method.AuthID).
		Updates(map[string]any{
			"name":          method.Name,
			"email":         method.Email,
			"password_hash": method.PasswordHash,
			"profile":       JSONMap(method.Profile),
		})
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *AuthMethodStore) GetUserAuthMethods(ctx context.Context, userID string) ([]*auth.AuthMethod, error) {
	var models []AuthMethodModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	methods := make([]*auth.AuthMethod, len(models))
	for i := range models {
		methods[i] = models[i].ToAuthMethod()
	}
	return methods, nil
}

// =============================================================================
// Store
// =============================================================================

// Store combines both GORM stores over one database handle
type Store struct {
	*UserStore
	*AuthMethodStore
}

var _ auth.Store = (*Store)(nil)

// NewStore migrates the schema and returns a Store backed by db
func NewStore(db *gorm.DB) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate auth tables: %w", err)
	}
	return &Store{
		UserStore:       NewUserStore(db),
		AuthMethodStore: NewAuthMethodStore(db),
	}, nil
}
