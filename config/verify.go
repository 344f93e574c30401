// Package config defines the client configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if len(cfg.Seeds) == 0 {
		return errors.New("seeds must list at least one address")
	}
	for _, s := range cfg.Seeds {
		host, port, err := net.SplitHostPort(s)
		if err != nil || host == "" || port == "" {
			return fmt.Errorf("seed %q is not host:port", s)
		}
	}

	if cfg.Pool.Size < 1 {
		return errors.New("pool.size must be at least 1")
	}
	if cfg.Redirect.MaxAttempts < 1 {
		return errors.New("redirect.max_attempts must be at least 1")
	}
	if cfg.Redirect.TryAgainBackoff < 0 {
		return errors.New("redirect.tryagain_backoff must not be negative")
	}
	if cfg.Refresh.Interval < 0 {
		return errors.New("refresh.interval must not be negative")
	}
	if cfg.Refresh.MinInterval <= 0 {
		return errors.New("refresh.min_interval must be positive")
	}
	if cfg.Timeout.Dial <= 0 {
		return errors.New("timeout.dial must be positive")
	}
	if cfg.Timeout.Node <= 0 {
		return errors.New("timeout.node must be positive")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Log.Format)
	}

	return nil
}
