// Package config defines the client configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultSeed = "127.0.0.1:6379"

	DefaultPoolSize = 1

	DefaultRedirectMaxAttempts = 16
	DefaultTryAgainBackoff     = 20 * time.Millisecond

	DefaultRefreshInterval    = 60 * time.Second
	DefaultRefreshMinInterval = 10 * time.Second

	DefaultDialTimeout = 5 * time.Second
	DefaultNodeTimeout = 5 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default client configuration.
func Default() *Config {
	return &Config{
		Seeds: []string{DefaultSeed},
		Cluster: ClusterSection{
			Enabled: true,
		},
		Pool: PoolSection{
			Size: DefaultPoolSize,
		},
		Redirect: RedirectSection{
			MaxAttempts:     DefaultRedirectMaxAttempts,
			TryAgainBackoff: DefaultTryAgainBackoff,
		},
		Refresh: RefreshSection{
			Interval:    DefaultRefreshInterval,
			MinInterval: DefaultRefreshMinInterval,
		},
		Timeout: TimeoutSection{
			Dial: DefaultDialTimeout,
			Node: DefaultNodeTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
