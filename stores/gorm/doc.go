//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based auth.Store. It supports any database
// that GORM supports; the service wires SQLite and PostgreSQL.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - users: canonical accounts, unique on email and apikey
//   - auth_methods: one row per auth id, carrying the password hash for
//     email methods and the provider profile snapshot for social ones
//
// Unique violations surface as auth.ErrDuplicate.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	store, _ := gormstore.NewStore(db)
package gorm
