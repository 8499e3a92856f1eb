package grpc

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	auth "github.com/prkng/auth"
)

// fakeResolver resolves one known apikey and one known user id
type fakeResolver struct {
	user     *auth.User
	storeErr error
}

func (f *fakeResolver) AuthenticateAPIKey(ctx context.Context, apikey string) (*auth.User, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if apikey == f.user.APIKey {
		return f.user, nil
	}
	return nil, auth.ErrUnauthorized
}

func (f *fakeResolver) UserByID(ctx context.Context, id string) (*auth.User, error) {
	if id == f.user.ID {
		return f.user, nil
	}
	return nil, auth.ErrNotFound
}

func newResolver() *fakeResolver {
	return &fakeResolver{user: &auth.User{ID: "user-1", Email: "alice@example.com", APIKey: "key-1"}}
}

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

var unaryInfo = &grpc.UnaryServerInfo{FullMethod: "/pkg.Svc/Method"}

// captureHandler records the user bound in the handler context
func captureHandler(got **auth.User) grpc.UnaryHandler {
	return func(ctx context.Context, req any) (any, error) {
		*got = auth.UserFrom(ctx)
		return "ok", nil
	}
}

func TestDefaultInterceptorConfig(t *testing.T) {
	config := DefaultInterceptorConfig(nil)
	if !config.RequireAuth {
		t.Error("expected RequireAuth to be true by default")
	}
	if config.PublicMethods == nil {
		t.Error("expected PublicMethods to be initialized")
	}
	if config.Config == nil {
		t.Error("expected Config to be initialized")
	}
}

func TestNewPublicMethodsConfig(t *testing.T) {
	config := NewPublicMethodsConfig(nil, "/pkg.Svc/Method1", "/pkg.Svc/Method2")
	if !config.RequireAuth {
		t.Error("expected RequireAuth to be true")
	}
	if !config.PublicMethods["/pkg.Svc/Method1"] || !config.PublicMethods["/pkg.Svc/Method2"] {
		t.Error("expected Method1 and Method2 to be public")
	}
	if config.PublicMethods["/pkg.Svc/Method3"] {
		t.Error("expected Method3 to not be public")
	}
}

func TestOptionalAuthConfig(t *testing.T) {
	if OptionalAuthConfig(nil).RequireAuth {
		t.Error("expected RequireAuth to be false")
	}
}

func TestUnaryAuthInterceptor_APIKey(t *testing.T) {
	interceptor := UnaryAuthInterceptor(DefaultInterceptorConfig(newResolver()))

	var got *auth.User
	resp, err := interceptor(incoming("x-api-key", "key-1"), nil, unaryInfo, captureHandler(&got))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Errorf("expected handler response, got %v", resp)
	}
	if got == nil || got.ID != "user-1" {
		t.Errorf("expected user-1 bound in handler context, got %+v", got)
	}
}

func TestUnaryAuthInterceptor_RequireAuth_NoCredentials(t *testing.T) {
	interceptor := UnaryAuthInterceptor(DefaultInterceptorConfig(newResolver()))

	_, err := interceptor(context.Background(), nil, unaryInfo, func(ctx context.Context, req any) (any, error) {
		t.Error("handler should not be called")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestUnaryAuthInterceptor_UnknownAPIKey(t *testing.T) {
	interceptor := UnaryAuthInterceptor(DefaultInterceptorConfig(newResolver()))

	_, err := interceptor(incoming("x-api-key", "stale"), nil, unaryInfo, func(ctx context.Context, req any) (any, error) {
		t.Error("handler should not be called")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}

func TestUnaryAuthInterceptor_StoreFailure(t *testing.T) {
	resolver := newResolver()
	resolver.storeErr = errors.New("connection refused")
	interceptor := UnaryAuthInterceptor(DefaultInterceptorConfig(resolver))

	_, err := interceptor(incoming("x-api-key", "key-1"), nil, unaryInfo, func(ctx context.Context, req any) (any, error) {
		t.Error("handler should not be called")
		return nil, nil
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("expected Internal, got %v", err)
	}
}

func TestUnaryAuthInterceptor_PublicMethod(t *testing.T) {
	interceptor := UnaryAuthInterceptor(NewPublicMethodsConfig(newResolver(), "/pkg.Svc/Method"))

	var got *auth.User
	_, err := interceptor(context.Background(), nil, unaryInfo, captureHandler(&got))
	if err != nil {
		t.Fatalf("public method should not require auth: %v", err)
	}
	if got != nil {
		t.Errorf("expected no user, got %+v", got)
	}
}

func TestUnaryAuthInterceptor_OptionalAuth(t *testing.T) {
	interceptor := UnaryAuthInterceptor(OptionalAuthConfig(newResolver()))

	var got *auth.User
	if _, err := interceptor(context.Background(), nil, unaryInfo, captureHandler(&got)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no user, got %+v", got)
	}
}

func TestUnaryAuthInterceptor_UserIDIgnoredUnlessTrusted(t *testing.T) {
	interceptor := UnaryAuthInterceptor(DefaultInterceptorConfig(newResolver()))
	_, err := interceptor(incoming("x-user-id", "user-1"), nil, unaryInfo, func(ctx context.Context, req any) (any, error) {
		t.Error("handler should not be called")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}

	config := DefaultInterceptorConfig(newResolver())
	config.TrustUserID = true
	var got *auth.User
	if _, err := UnaryAuthInterceptor(config)(incoming("x-user-id", "user-1"), nil, unaryInfo, captureHandler(&got)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "user-1" {
		t.Errorf("expected trusted user id to bind user-1, got %+v", got)
	}
}

func TestUnaryAuthInterceptor_CustomKey(t *testing.T) {
	config := DefaultInterceptorConfig(newResolver())
	config.MetadataKeyAPIKey = "authorization-key"

	var got *auth.User
	if _, err := UnaryAuthInterceptor(config)(incoming("authorization-key", "key-1"), nil, unaryInfo, captureHandler(&got)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Error("expected user bound with custom metadata key")
	}
}

// mockServerStream is a minimal grpc.ServerStream for interceptor tests
type mockServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context {
	return m.ctx
}

func TestStreamAuthInterceptor(t *testing.T) {
	interceptor := StreamAuthInterceptor(DefaultInterceptorConfig(newResolver()))
	info := &grpc.StreamServerInfo{FullMethod: "/pkg.Svc/Stream"}

	var got *auth.User
	err := interceptor(nil, &mockServerStream{ctx: incoming("x-api-key", "key-1")}, info, func(srv any, ss grpc.ServerStream) error {
		got = auth.UserFrom(ss.Context())
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "user-1" {
		t.Errorf("expected user-1 on stream context, got %+v", got)
	}

	err = interceptor(nil, &mockServerStream{ctx: context.Background()}, info, func(srv any, ss grpc.ServerStream) error {
		t.Error("handler should not be called")
		return nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}
