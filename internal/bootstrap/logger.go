package bootstrap

import (
	"paper_trader/internal/core"
	"paper_trader/pkg/logging"
)

// InitLogger builds the application logger from configuration.
func InitLogger(cfg *Config) (core.Logger, error) {
	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, err
	}
	return logger.WithField("source", cfg.App.Source), nil
}
