package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service exposes the identity entry points: registration, profile updates
// and the three sign-in flows.
type Service struct {
	store      Store
	hasher     PasswordHasher
	reconciler *Reconciler
	binder     *Binder
	facebook   Verifier
	google     Verifier
	logger     *slog.Logger
}

type Option func(*Service)

// WithHasher replaces the default PBKDF2 hasher
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

// WithLogger sets a custom logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBinder sets how signed in users are attached to requests
func WithBinder(b *Binder) Option {
	return func(s *Service) {
		s.binder = b
	}
}

// WithFacebook enables Facebook sign-in
func WithFacebook(v Verifier) Option {
	return func(s *Service) {
		s.facebook = v
	}
}

// WithGoogle enables Google sign-in
func WithGoogle(v Verifier) Option {
	return func(s *Service) {
		s.google = v
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		hasher: NewPBKDF2Hasher(),
		binder: &Binder{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = NewReconciler(store, s.logger)
	return s
}

// RegisterParams are the inputs of an email registration
type RegisterParams struct {
	Email     string
	Password  string
	Name      string
	Gender    string
	Birthyear string
	ImageURL  string
}

// Register creates a user with a password method and signs it in.
// Returns ErrConflict if the email is already used by any provider.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*UserView, error) {
	email := NormalizeEmail(params.Email)

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// hash before any write so a hashing failure leaves nothing behind
	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	apikey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &User{
		ID:       uuid.NewString(),
		Email:    email,
		Name:     params.Name,
		Gender:   params.Gender,
		ImageURL: params.ImageURL,
		APIKey:   apikey,
		Created:  now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	authID := EmailAuthID(user.ID)
	method := &AuthMethod{
		AuthID:       authID,
		UserID:       user.ID,
		Name:         params.Name,
		Email:        email,
		Type:         AuthTypeEmail,
		PasswordHash: passwordHash,
		Profile:      map[string]any{"birthyear": params.Birthyear},
		Created:      now,
	}
	if err := s.store.CreateAuthMethod(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to create auth method for %s: %w", user.ID, err)
	}
	s.logger.InfoContext(ctx, "registered user", "user_id", user.ID)

	if err := s.binder.Bind(ctx, user, authID); err != nil {
		return nil, err
	}
	return user.View(authID), nil
}

// SignInEmail authenticates with email and password and reissues the apikey
func (s *Service) SignInEmail(ctx context.Context, email, password string) (*UserView, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, s.signInFailed(ctx, AuthTypeEmail, ErrAccountNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	authID := EmailAuthID(user.ID)
	method, err := s.store.GetAuthMethod(ctx, authID)
	if errors.Is(err, ErrNotFound) {
		return nil, s.signInFailed(ctx, AuthTypeEmail, ErrWrongMethod)
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up auth method: %w", err)
	}

	if !s.hasher.Verify(password, method.PasswordHash) {
		return nil, s.signInFailed(ctx, AuthTypeEmail, ErrInvalidCredential)
	}

	if err := s.refreshAPIKey(ctx, user); err != nil {
		return nil, err
	}
	if err := s.binder.Bind(ctx, user, authID); err != nil {
		return nil, err
	}
	return user.View(authID), nil
}

func (s *Service) refreshAPIKey(ctx context.Context, user *User) error {
	apikey, err := GenerateAPIKey()
	if err != nil {
		return err
	}
	user.APIKey = apikey
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update apikey for %s: %w", user.ID, err)
	}
	return nil
}

func (s *Service) signInFailed(ctx context.Context, provider AuthType, err *AuthError) error {
	s.logger.InfoContext(ctx, "sign-in failed", "provider", provider, "code", err.Code)
	return err
}
