package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration of the API service, populated from
// environment variables.
type Config struct {
	Addr  string `env:"JOBBOARD_ADDR" envDefault:":8080"`
	PGDSN string `env:"JOBBOARD_PG_DSN"`

	// JWTSecret is the base64-encoded symmetric signing key shared by all
	// token kinds.
	JWTSecret string `env:"JOBBOARD_JWT_SECRET"`
	Issuer    string `env:"JOBBOARD_JWT_ISSUER" envDefault:"jobboard"`

	AccessTokenTTL  time.Duration `env:"JOBBOARD_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"JOBBOARD_REFRESH_TOKEN_TTL" envDefault:"336h"`
	VerifyTokenTTL  time.Duration `env:"JOBBOARD_VERIFY_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL   time.Duration `env:"JOBBOARD_RESET_TOKEN_TTL" envDefault:"15m"`

	RateLimitPerSecond int `env:"JOBBOARD_RATE_LIMIT_PER_SECOND" envDefault:"50"`
	RateLimitBurst     int `env:"JOBBOARD_RATE_LIMIT_BURST" envDefault:"100"`

	MaxBodyBytes int64 `env:"JOBBOARD_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SigningKey decodes the configured base64 JWT secret.
func (c Config) SigningKey() ([]byte, error) {
	if c.JWTSecret == "" {
		return nil, errors.New("config: JOBBOARD_JWT_SECRET is not set")
	}
	key, err := base64.StdEncoding.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("config: decode JWT secret: %w", err)
	}
	if len(key) < 32 {
		return nil, errors.New("config: JWT secret must be at least 32 bytes")
	}
	return key, nil
}
