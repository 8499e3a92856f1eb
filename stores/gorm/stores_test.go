//go:build !wasm
// +build !wasm

package gorm_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auth "github.com/prkng/auth"
	gormstore "github.com/prkng/auth/stores/gorm"
	"github.com/prkng/auth/stores/storetest"
)

func openDB(t *testing.T) *gorm.DB {
	dsn := filepath.Join(t.TempDir(), "auth.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newStore(t *testing.T) auth.Store {
	s, err := gormstore.NewStore(openDB(t))
	require.NoError(t, err)
	return s
}

func TestGORMStore(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestGORMStoreTranslatedErrors(t *testing.T) {
	db := openDB(t)
	db.Config.TranslateError = true
	s, err := gormstore.NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, storetest.NewUser(t, "dup@example.com")))
	err = s.CreateUser(ctx, storetest.NewUser(t, "dup@example.com"))
	assert.ErrorIs(t, err, auth.ErrDuplicate)
}

func TestGORMStoreUnrelatedErrorsPassThrough(t *testing.T) {
	db := openDB(t)
	s, err := gormstore.NewStore(db)
	require.NoError(t, err)
	require.NoError(t, db.Migrator().DropTable(&gormstore.UserModel{}))

	_, err = s.GetUserByID(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, auth.ErrNotFound), fmt.Sprint(err))
	assert.False(t, errors.Is(err, auth.ErrDuplicate))
}
