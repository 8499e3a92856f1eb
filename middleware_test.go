package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/prkng/auth"
)

type fakeResolver struct {
	byKey map[string]*auth.User
	byID  map[string]*auth.User
	err   error
}

func (f *fakeResolver) AuthenticateAPIKey(ctx context.Context, apikey string) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byKey[apikey]; ok {
		return u, nil
	}
	return nil, auth.ErrUnauthorized
}

func (f *fakeResolver) UserByID(ctx context.Context, id string) (*auth.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, auth.ErrNotFound
}

func whoami(w http.ResponseWriter, r *http.Request) {
	if u := auth.UserFrom(r.Context()); u != nil {
		w.Write([]byte(u.ID))
		return
	}
	w.Write([]byte("anonymous"))
}

func TestMiddleware_Authenticate(t *testing.T) {
	alice := &auth.User{ID: "alice"}
	mw := &auth.Middleware{Resolver: &fakeResolver{byKey: map[string]*auth.User{"k1": alice}}}
	h := mw.Authenticate(http.HandlerFunc(whoami))

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"no credentials", "", "", "anonymous"},
		{"apikey header", "X-API-KEY", "k1", "alice"},
		{"bearer token", "Authorization", "Bearer k1", "alice"},
		{"unknown key", "X-API-KEY", "nope", "anonymous"},
		{"basic auth ignored", "Authorization", "Basic k1", "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Body.String())
		})
	}
}

func TestMiddleware_CustomHeader(t *testing.T) {
	mw := &auth.Middleware{
		Resolver:     &fakeResolver{byKey: map[string]*auth.User{"k1": {ID: "alice"}}},
		APIKeyHeader: "X-Prkng-Key",
	}
	h := mw.Authenticate(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Prkng-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "alice", rr.Body.String())
}

func TestMiddleware_ResolverErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	mw := &auth.Middleware{
		Resolver: &fakeResolver{err: errors.New("store down")},
		Logger:   slog.New(slog.NewTextHandler(&buf, nil)),
	}
	h := mw.Authenticate(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-KEY", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "anonymous", rr.Body.String())
	assert.Contains(t, buf.String(), "store down")
}

func TestMiddleware_RequireUser(t *testing.T) {
	mw := &auth.Middleware{Resolver: &fakeResolver{byKey: map[string]*auth.User{"k1": {ID: "alice"}}}}
	h := mw.Authenticate(mw.RequireUser(http.HandlerFunc(whoami)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `"Login required"`, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-KEY", "k1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", rr.Body.String())
}
