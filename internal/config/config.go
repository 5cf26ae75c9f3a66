package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dtroode/memberpass/internal/model"
)

// Config contains application configuration parameters.
type Config struct {
	LogLevel  int       `env:"LOG_LEVEL" envDefault:"0"`
	HTTP      HTTP      `envPrefix:"HTTP_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Registry  Registry  `envPrefix:"REGISTRY_"`
	Token     Token     `envPrefix:"TOKEN_"`
	Import    Import    `envPrefix:"IMPORT_"`
	Photo     Photo     `envPrefix:"PHOTO_"`
	Storage   Storage   `envPrefix:"MINIO_"`
	RateLimit RateLimit `envPrefix:"RATELIMIT_"`
}

// HTTP contains parameters of the operational HTTP surface.
type HTTP struct {
	Addr               string `env:"ADDR" envDefault:":8080"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	PublicURL          string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	TrustProxy         bool   `env:"TRUST_PROXY" envDefault:"false"`
}

// Database contains registry database parameters.
type Database struct {
	Driver   string `env:"DRIVER" envDefault:"sqlite"`
	DSN      string `env:"DSN" envDefault:"instance/members.db"`
	LockPath string `env:"LOCK_PATH"`
}

// Registry contains member registry encryption parameters.
type Registry struct {
	Secret              string `env:"SECRET"`
	MaskDecryptFailures bool   `env:"MASK_DECRYPT_FAILURES" envDefault:"true"`
}

// Token contains signed token parameters.
type Token struct {
	Secret string        `env:"SECRET"`
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"1h"`
}

// Import contains tabular ingestion parameters.
type Import struct {
	Delimiter string `env:"DELIMITER" envDefault:";"`
}

// Photo contains photo vault parameters.
type Photo struct {
	Backend string `env:"BACKEND" envDefault:"fs"`
	Dir     string `env:"DIR" envDefault:"uploads/photos"`
}

// Storage contains object storage parameters.
type Storage struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"memberpass-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"memberpass-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"memberpass-photos"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// RateLimit contains magic-link request limiting parameters.
type RateLimit struct {
	RedisURL        string        `env:"REDIS_URL"`
	MagicLinkLimit  int           `env:"MAGIC_LINK_LIMIT" envDefault:"5"`
	MagicLinkWindow time.Duration `env:"MAGIC_LINK_WINDOW" envDefault:"1h"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate reports configuration that makes dependent components unusable.
func (c *Config) Validate() error {
	if c.Registry.Secret == "" {
		return fmt.Errorf("%w: REGISTRY_SECRET", model.ErrMissingSecret)
	}
	if c.Token.Secret == "" {
		return fmt.Errorf("%w: TOKEN_SECRET", model.ErrMissingSecret)
	}
	switch c.Database.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Photo.Backend {
	case "fs", "minio":
	default:
		return fmt.Errorf("unsupported photo backend %q", c.Photo.Backend)
	}
	if len([]rune(c.Import.Delimiter)) != 1 {
		return fmt.Errorf("import delimiter must be a single character, got %q", c.Import.Delimiter)
	}
	return nil
}

// DelimiterRune returns the configured fallback delimiter.
func (c *Config) DelimiterRune() rune {
	r := []rune(c.Import.Delimiter)
	if len(r) == 0 {
		return ';'
	}
	return r[0]
}

// LockFile returns the advisory lock path guarding registry writers.
// It defaults to a sibling of the sqlite database file.
func (d Database) LockFile() string {
	if d.LockPath != "" {
		return d.LockPath
	}
	if d.Driver == "sqlite" {
		path := strings.TrimPrefix(d.DSN, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		return path + ".lock"
	}
	return filepath.Join("instance", "registry.lock")
}
