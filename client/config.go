package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration for the API client.
type Config struct {
	BaseURL        string        `env:"OFICAZ_BASE_URL"`
	RequestTimeout time.Duration `env:"OFICAZ_REQUEST_TIMEOUT" envDefault:"30s"`

	// RefreshTimeout bounds the refresh round-trip (see session.Manager).
	RefreshTimeout time.Duration `env:"OFICAZ_REFRESH_TIMEOUT" envDefault:"10s"`

	// AuthFailureThreshold/Window control the forced sign-out debounce.
	AuthFailureThreshold int           `env:"OFICAZ_AUTH_FAILURE_THRESHOLD" envDefault:"3"`
	AuthFailureWindow    time.Duration `env:"OFICAZ_AUTH_FAILURE_WINDOW"    envDefault:"30s"`

	// StateDir is where the durable session tier lives. Defaults to an
	// "oficaz" directory under the user config dir.
	StateDir string `env:"OFICAZ_STATE_DIR"`
}

// NewConfig creates a Config instance from environment variables.
func NewConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	if cfg.StateDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve state dir: %w", err)
		}
		cfg.StateDir = filepath.Join(base, "oficaz")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("missing OFICAZ_BASE_URL environment variable")
	}
	if c.RequestTimeout <= 0 || c.RefreshTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	return nil
}
