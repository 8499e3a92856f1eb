//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore auth.Store, for deployments
// on Google Cloud Platform.
//
// # Datastore Kinds
//
//   - User: canonical accounts, keyed by user id
//   - UserEmail: one entity per taken email, keyed by the email
//   - AuthMethod: provider bindings, keyed by auth id
//
// Creating a user writes User and UserEmail in one transaction, which is
// what makes emails unique.
//
// # Namespacing
//
// All stores support Datastore namespaces so several environments can share
// a project:
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewStore(client, "staging")
package gae
