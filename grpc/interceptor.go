package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	auth "github.com/prkng/auth"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// Resolver turns metadata credentials into users. *auth.Service
	// satisfies it.
	Resolver auth.UserResolver

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but auth.UserFrom returns nil.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool

	Logger *slog.Logger
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig(resolver auth.UserResolver) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		Resolver:      resolver,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig creates a config with the specified public methods.
func NewPublicMethodsConfig(resolver auth.UserResolver, publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig(resolver)
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(resolver auth.UserResolver) *InterceptorConfig {
	config := DefaultInterceptorConfig(resolver)
	config.RequireAuth = false
	return config
}

func (c *InterceptorConfig) ensureDefaults() *InterceptorConfig {
	if c == nil {
		c = DefaultInterceptorConfig(nil)
	}
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// caller from metadata and binds it into the handler context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = config.ensureDefaults()

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, config, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that resolves the
// caller from metadata and binds it into the stream context.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = config.ensureDefaults()

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), config, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authStream{ServerStream: ss, ctx: ctx})
	}
}

// authStream overrides the stream context with the authenticated one
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authStream) Context() context.Context {
	return s.ctx
}

func authenticate(ctx context.Context, config *InterceptorConfig, method string) (context.Context, error) {
	user, err := resolveUser(ctx, config)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return auth.WithUser(ctx, user, ""), nil
	}

	ctx, _ = auth.NewContext(ctx)
	if config.RequireAuth && !config.PublicMethods[method] {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	return ctx, nil
}

// resolveUser returns nil without error when the metadata carries no
// usable credential. Only store failures are reported.
func resolveUser(ctx context.Context, config *InterceptorConfig) (*auth.User, error) {
	if config.Resolver == nil {
		return nil, nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, nil
	}

	if values := md.Get(config.MetadataKeyAPIKey); len(values) > 0 && values[0] != "" {
		user, err := config.Resolver.AuthenticateAPIKey(ctx, values[0])
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, auth.ErrUnauthorized) {
			config.Logger.ErrorContext(ctx, "error resolving apikey", "error", err)
			return nil, status.Error(codes.Internal, "failed to authenticate")
		}
		return nil, nil
	}

	if config.TrustUserID {
		if values := md.Get(config.MetadataKeyUserID); len(values) > 0 && values[0] != "" {
			user, err := config.Resolver.UserByID(ctx, values[0])
			if err != nil {
				config.Logger.WarnContext(ctx, "forwarded user not found", "user_id", values[0], "error", err)
				return nil, nil
			}
			return user, nil
		}
	}
	return nil, nil
}
