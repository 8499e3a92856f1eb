package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prkng/auth/client"
)

func newStore(t *testing.T) (*FSCredentialStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prkng", "credentials.json")
	store, err := NewFSCredentialStore(path, "")
	if err != nil {
		t.Fatalf("NewFSCredentialStore() error = %v", err)
	}
	return store, path
}

func TestFSCredentialStore_GetSetCredential(t *testing.T) {
	store, _ := newStore(t)

	cred, err := store.GetCredential("http://localhost:8080")
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if cred != nil {
		t.Errorf("expected nil credential, got %+v", cred)
	}

	if err := store.SetCredential("http://localhost:8080", &client.ServerCredential{
		APIKey:    "key-123",
		UserID:    "user-1",
		UserEmail: "user@example.com",
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	cred, err = store.GetCredential("http://localhost:8080")
	if err != nil {
		t.Fatalf("GetCredential() error = %v", err)
	}
	if cred == nil || cred.APIKey != "key-123" {
		t.Errorf("APIKey = %+v, want key-123", cred)
	}
}

func TestFSCredentialStore_URLNormalization(t *testing.T) {
	store, _ := newStore(t)
	store.SetCredential("http://localhost:8080/login/email?x=1", &client.ServerCredential{APIKey: "k"})

	for _, u := range []string{"http://localhost:8080", "http://localhost:8080/user/profile"} {
		cred, _ := store.GetCredential(u)
		if cred == nil {
			t.Errorf("expected credential for %s", u)
		}
	}
	if cred, _ := store.GetCredential("https://localhost:8080"); cred != nil {
		t.Error("scheme must be part of the key")
	}
}

func TestFSCredentialStore_RemoveAndList(t *testing.T) {
	store, _ := newStore(t)
	store.SetCredential("https://b.example", &client.ServerCredential{APIKey: "b"})
	store.SetCredential("https://a.example", &client.ServerCredential{APIKey: "a"})

	servers, _ := store.ListServers()
	if len(servers) != 2 || servers[0] != "https://a.example" || servers[1] != "https://b.example" {
		t.Errorf("ListServers() = %v", servers)
	}

	if err := store.RemoveCredential("https://a.example"); err != nil {
		t.Fatalf("RemoveCredential() error = %v", err)
	}
	servers, _ = store.ListServers()
	if len(servers) != 1 {
		t.Errorf("expected 1 server after removal, got %v", servers)
	}
}

func TestFSCredentialStore_Persistence(t *testing.T) {
	store, path := newStore(t)
	store.SetCredential("https://api.prkng.example", &client.ServerCredential{
		APIKey:    "persisted-key",
		UserEmail: "user@example.com",
	})
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := NewFSCredentialStore(path, "")
	if err != nil {
		t.Fatalf("NewFSCredentialStore() error = %v", err)
	}
	cred, _ := reopened.GetCredential("https://api.prkng.example")
	if cred == nil || cred.APIKey != "persisted-key" {
		t.Fatalf("expected persisted credential, got %+v", cred)
	}
	if cred.UserEmail != "user@example.com" {
		t.Errorf("UserEmail = %v, want user@example.com", cred.UserEmail)
	}
}

func TestFSCredentialStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	store, path := newStore(t)
	store.SetCredential("https://api.prkng.example", &client.ServerCredential{APIKey: "k"})
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 600", perm)
	}
}

func TestFSCredentialStore_SaveWithoutChanges(t *testing.T) {
	store, path := newStore(t)
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected no file to be written without changes")
	}
}

func TestFSCredentialStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	if _, err := NewFSCredentialStore(path, ""); err == nil {
		t.Error("expected error for corrupt credentials file")
	}
}

func TestFSCredentialStore_AsClientStore(t *testing.T) {
	store, _ := newStore(t)
	var _ client.CredentialStore = store
}
