package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the static settings of the identity layer. Provider ids are
// never negotiated at runtime.
type Config struct {
	FacebookAppID         string        `env:"FACEBOOK_APP_ID"`
	GoogleClientID        string        `env:"GOOGLE_CLIENT_ID"` // legacy access tokens
	GoogleIOSClientID     string        `env:"GOOGLE_IOS_CLIENT_ID"`
	GoogleAndroidClientID string        `env:"GOOGLE_ANDROID_CLIENT_ID"`
	ProviderTimeout       time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s"`
	PBKDF2Rounds          int           `env:"PBKDF2_ROUNDS" envDefault:"200"`

	// Store selects the backend: fs, sqlite, postgres or datastore
	Store              string `env:"STORE" envDefault:"fs"`
	StorePath          string `env:"STORE_PATH" envDefault:"./data"`
	DatabaseURL        string `env:"DATABASE_URL"`
	DatastoreProject   string `env:"DATASTORE_PROJECT"`
	DatastoreNamespace string `env:"DATASTORE_NAMESPACE"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
}

// LoadConfig reads the given .env files (missing files are skipped) and
// then parses the environment. Variables already set take precedence.
func LoadConfig(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// GoogleIDTokenAudiences returns the client ids accepted for ID tokens
func (c *Config) GoogleIDTokenAudiences() []string {
	var out []string
	for _, id := range []string{c.GoogleIOSClientID, c.GoogleAndroidClientID} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
