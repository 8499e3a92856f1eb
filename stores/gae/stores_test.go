//go:build !wasm
// +build !wasm

package gae_test

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	auth "github.com/prkng/auth"
	"github.com/prkng/auth/stores/gae"
	"github.com/prkng/auth/stores/storetest"
)

// These tests need the Datastore emulator:
//
//	gcloud beta emulators datastore start --no-store-on-disk
//	$(gcloud beta emulators datastore env-init)
func TestGAEStore(t *testing.T) {
	if os.Getenv("DATASTORE_EMULATOR_HOST") == "" {
		t.Skip("DATASTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := datastore.NewClient(ctx, "prkng-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	storetest.Run(t, func(t *testing.T) auth.Store {
		// a namespace per subtest keeps them isolated
		return gae.NewStore(client, "test-"+uuid.NewString()[:8])
	})
}
