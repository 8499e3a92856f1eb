// Package grpc carries the authenticated prkng user across gRPC calls.
//
// An HTTP front end that has already resolved the caller forwards the
// apikey (and user id) as metadata; backends install the interceptors,
// which resolve the apikey again and bind the user into the handler
// context, where auth.UserFrom finds it.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	auth "github.com/prkng/auth"
)

// Default metadata keys for authentication context.
const (
	// DefaultMetadataKeyUserID is the default gRPC metadata key for the authenticated user ID
	DefaultMetadataKeyUserID = "x-user-id"

	// DefaultMetadataKeyAPIKey is the default gRPC metadata key for the caller's apikey
	DefaultMetadataKeyAPIKey = "x-api-key"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyUserID defaults to "x-user-id"
	MetadataKeyUserID string

	// MetadataKeyAPIKey defaults to "x-api-key"
	MetadataKeyAPIKey string

	// TrustUserID lets a bare user id in metadata authenticate the call.
	// Only enable it behind a gateway that strips the key from client traffic.
	TrustUserID bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyUserID: DefaultMetadataKeyUserID,
		MetadataKeyAPIKey: DefaultMetadataKeyAPIKey,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
	if c.MetadataKeyAPIKey == "" {
		c.MetadataKeyAPIKey = DefaultMetadataKeyAPIKey
	}
}

func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// UserIDFromContext extracts the user ID from the incoming metadata.
// Returns empty string if none was sent.
func UserIDFromContext(ctx context.Context) string {
	return firstValue(ctx, DefaultMetadataKeyUserID)
}

// APIKeyFromContext extracts the apikey from the incoming metadata.
func APIKeyFromContext(ctx context.Context) string {
	return firstValue(ctx, DefaultMetadataKeyAPIKey)
}

// UserIDToOutgoingContext adds the user ID to outgoing gRPC context metadata.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}

// APIKeyToOutgoingContext adds the apikey to outgoing gRPC context metadata.
func APIKeyToOutgoingContext(ctx context.Context, apikey string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAPIKey, apikey)
}

// UserToOutgoingContext forwards the user bound to ctx, if any, so a
// backend can authenticate the same caller.
func UserToOutgoingContext(ctx context.Context) context.Context {
	user := auth.UserFrom(ctx)
	if user == nil {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx,
		DefaultMetadataKeyUserID, user.ID,
		DefaultMetadataKeyAPIKey, user.APIKey,
	)
}

// IsAuthenticated returns true if the interceptor bound a user to ctx.
func IsAuthenticated(ctx context.Context) bool {
	return auth.UserFrom(ctx) != nil
}
