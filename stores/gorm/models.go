//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	auth "github.com/prkng/auth"
)

// JSONMap is a helper type for storing JSON maps in GORM
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}
}

// UserModel is the GORM model for users
type UserModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Email     string    `gorm:"size:320;uniqueIndex;not null"`
	Name      string    `gorm:"size:255"`
	FirstName string    `gorm:"size:255"`
	LastName  string    `gorm:"size:255"`
	Gender    string    `gorm:"size:32"`
	ImageURL  string    `gorm:"size:1024"`
	APIKey    string    `gorm:"column:apikey;size:128;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *auth.User {
	return &auth.User{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Gender:    m.Gender,
		ImageURL:  m.ImageURL,
		APIKey:    m.APIKey,
		Created:   m.CreatedAt,
	}
}

func UserToModel(u *auth.User) *UserModel {
	return &UserModel{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Gender:    u.Gender,
		ImageURL:  u.ImageURL,
		APIKey:    u.APIKey,
		CreatedAt: u.Created,
	}
}

// AuthMethodModel is the GORM model for auth methods
type AuthMethodModel struct {
	AuthID       string    `gorm:"primaryKey;column:auth_id;size:320"`
	UserID       string    `gorm:"size:64;index;not null"`
	Name         string    `gorm:"size:255"`
	Email        string    `gorm:"size:320"`
	AuthType     string    `gorm:"size:32;not null"`
	PasswordHash string    `gorm:"size:255"`
	Profile      JSONMap   `gorm:"type:jsonb"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (AuthMethodModel) TableName() string {
	return "auth_methods"
}

func (m *AuthMethodModel) ToAuthMethod() *auth.AuthMethod {
	return &auth.AuthMethod{
		AuthID:       m.AuthID,
		UserID:       m.UserID,
		Name:         m.Name,
		Email:        m.Email,
		Type:         auth.AuthType(m.AuthType),
		PasswordHash: m.PasswordHash,
		Profile:      m.Profile,
		Created:      m.CreatedAt,
	}
}

func AuthMethodToModel(a *auth.AuthMethod) *AuthMethodModel {
	return &AuthMethodModel{
		AuthID:       a.AuthID,
		UserID:       a.UserID,
		Name:         a.Name,
		Email:        a.Email,
		AuthType:     string(a.Type),
		PasswordHash: a.PasswordHash,
		Profile:      JSONMap(a.Profile),
		CreatedAt:    a.Created,
	}
}
