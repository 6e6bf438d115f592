// Package config loads the portal client settings from PORTAL_* environment
// variables, after reading a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	auth "github.com/goliatone/go-portal-auth"
)

// Store backends understood by the CLI.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds client options. It implements auth.Config.
type Config struct {
	BaseURL        string        `env:"PORTAL_BASE_URL" envDefault:"http://localhost:3000"`
	APIPrefix      string        `env:"PORTAL_API_PREFIX" envDefault:"/api"`
	AdminProfileID int           `env:"PORTAL_ADMIN_PROFILE_ID" envDefault:"1"`
	RequestTimeout time.Duration `env:"PORTAL_REQUEST_TIMEOUT" envDefault:"15s"`

	StoreBackend  string `env:"PORTAL_STORE" envDefault:"file"`
	StorePath     string `env:"PORTAL_STORE_PATH"`
	RedisAddr     string `env:"PORTAL_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"PORTAL_REDIS_PASSWORD"`
	RedisDB       int    `env:"PORTAL_REDIS_DB" envDefault:"0"`

	JWKSURL string `env:"PORTAL_JWKS_URL"`
	HMACKey string `env:"PORTAL_HMAC_KEY"`

	LogLevel  string `env:"PORTAL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PORTAL_LOG_FORMAT" envDefault:"text"`
}

var _ auth.Config = Config{}

// Load reads the optional .env files (the first one found wins per
// variable, real environment variables always win) and parses the
// environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that can not be defaulted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("PORTAL_BASE_URL is required")
	}
	switch c.StoreBackend {
	case StoreFile, StoreSQLite, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("PORTAL_STORE must be one of file, sqlite, redis, memory, got %q", c.StoreBackend)
	}
	if c.RequestTimeout < 0 {
		return errors.New("PORTAL_REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

func (c Config) GetBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func (c Config) GetAPIPrefix() string {
	return c.APIPrefix
}

func (c Config) GetAdminProfileID() int {
	return c.AdminProfileID
}

func (c Config) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}
