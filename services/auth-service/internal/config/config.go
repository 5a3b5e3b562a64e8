package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// AuthServiceConfig holds the runtime configuration for the auth service.
type AuthServiceConfig struct {
	HTTPAddr      string `env:"OFICAZ_HTTP_ADDR"      envDefault:":8080"`
	MongoURI      string `env:"OFICAZ_MONGO_URI"`
	MongoDatabase string `env:"OFICAZ_MONGO_DATABASE" envDefault:"oficaz"`

	Token TokenConfig
}

// TokenConfig controls token issuance. Access and refresh tokens are signed
// with separate secrets.
type TokenConfig struct {
	Issuer                string        `env:"OFICAZ_TOKEN_ISSUER"             envDefault:"oficaz"`
	AccessTokenSecret     string        `env:"OFICAZ_ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret    string        `env:"OFICAZ_REFRESH_TOKEN_SECRET"`
	AccessTokenExpiresIn  time.Duration `env:"OFICAZ_ACCESS_TOKEN_EXPIRES_IN"  envDefault:"15m"`
	RefreshTokenExpiresIn time.Duration `env:"OFICAZ_REFRESH_TOKEN_EXPIRES_IN" envDefault:"720h"`
}

// New creates an AuthServiceConfig instance from environment variables.
func New(logger *zerolog.Logger) *AuthServiceConfig {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate auth service configuration")
	}

	return &cfg
}

// validate checks if the configuration is valid.
func (c *AuthServiceConfig) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("missing OFICAZ_MONGO_URI environment variable")
	}
	if c.Token.AccessTokenSecret == "" {
		return fmt.Errorf("missing OFICAZ_ACCESS_TOKEN_SECRET environment variable")
	}
	if c.Token.RefreshTokenSecret == "" {
		return fmt.Errorf("missing OFICAZ_REFRESH_TOKEN_SECRET environment variable")
	}
	if c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.Token.AccessTokenExpiresIn <= 0 || c.Token.RefreshTokenExpiresIn <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	return nil
}
