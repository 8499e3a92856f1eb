// Command prkng-auth serves the prkng sign-in endpoints.
//
// Configuration comes from the environment, optionally seeded from a .env
// file in the working directory. See auth.Config for the variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/alexedwards/scs/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	auth "github.com/prkng/auth"
	"github.com/prkng/auth/oauth2"
	"github.com/prkng/auth/stores/fs"
	"github.com/prkng/auth/stores/gae"
	gormstore "github.com/prkng/auth/stores/gorm"
)

func main() {
	cfg, err := auth.LoadConfig(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *auth.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := scs.New()
	sessions.Lifetime = cfg.SessionLifetime
	sessions.Cookie.Name = "prkng_session"
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode

	providerClient := oauth2.NewHTTPClient(cfg.ProviderTimeout)
	hasher := auth.NewPBKDF2Hasher()
	hasher.Rounds = cfg.PBKDF2Rounds

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithHasher(hasher),
		auth.WithBinder(&auth.Binder{Sessions: sessions}),
	}
	if cfg.FacebookAppID != "" {
		opts = append(opts, auth.WithFacebook(oauth2.NewFacebookVerifier(cfg.FacebookAppID, providerClient)))
	} else {
		logger.Warn("FACEBOOK_APP_ID not set, facebook sign-in disabled")
	}
	if cfg.GoogleClientID != "" || len(cfg.GoogleIDTokenAudiences()) > 0 {
		opts = append(opts, auth.WithGoogle(oauth2.NewGoogleVerifier(cfg, providerClient)))
	} else {
		logger.Warn("no google client ids set, google sign-in disabled")
	}

	svc := auth.NewService(store, opts...)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "store", cfg.Store)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore builds the backend selected by cfg.Store
func openStore(ctx context.Context, cfg *auth.Config) (auth.Store, func(), error) {
	noop := func() {}
	kind := strings.ToLower(cfg.Store)

	switch kind {
	case "", "fs":
		store, err := fs.NewStore(cfg.StorePath)
		return store, noop, err

	case "sqlite", "postgres":
		var dialector gorm.Dialector
		if kind == "postgres" {
			if cfg.DatabaseURL == "" {
				return nil, nil, errors.New("DATABASE_URL is required for STORE=postgres")
			}
			dialector = postgres.Open(cfg.DatabaseURL)
		} else {
			dsn := cfg.DatabaseURL
			if dsn == "" {
				dsn = cfg.StorePath + "/auth.db"
				if err := os.MkdirAll(cfg.StorePath, 0755); err != nil {
					return nil, nil, err
				}
			}
			dialector = sqlite.Open(dsn)
		}
		db, err := gorm.Open(dialector, &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s database: %w", kind, err)
		}
		store, err := gormstore.NewStore(db)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return store, closeDB, nil

	case "datastore":
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create datastore client: %w", err)
		}
		return gae.NewStore(client, cfg.DatastoreNamespace), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE %q", cfg.Store)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
