package bootstrap

import (
	"fmt"
	"os"

	"paper_trader/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	// Pre-flight Checks
	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *Config) error {
	if err := os.MkdirAll(cfg.App.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir %s not usable: %w", cfg.App.DataDir, err)
	}

	// The allowlist is operator-managed; refusing to start without it beats
	// rejecting every order at runtime.
	if _, err := os.Stat(cfg.Trading.AllowlistFile); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("allowlist file not found: %s (one ticker per line)", cfg.Trading.AllowlistFile)
		}
		return err
	}

	return nil
}
