// Package config defines the client configuration structure.
package config

import "time"

// Config is the root configuration for a lettuce client.
type Config struct {
	// Seeds are the bootstrap addresses used for the first topology
	// discovery, host:port each. In single-node mode only the first
	// entry is used.
	Seeds []string `koanf:"seeds"`

	Cluster  ClusterSection  `koanf:"cluster"`
	Pool     PoolSection     `koanf:"pool"`
	Redirect RedirectSection `koanf:"redirect"`
	Refresh  RefreshSection  `koanf:"refresh"`
	Timeout  TimeoutSection  `koanf:"timeout"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

// ClusterSection toggles cluster awareness.
type ClusterSection struct {
	// Enabled selects cluster mode: slot-based routing, redirect
	// handling and background topology refresh. Disabled, the client
	// pins every command to the first seed.
	Enabled bool `koanf:"enabled"`
}

// PoolSection configures the per-node connection pools.
type PoolSection struct {
	// Size is the number of multiplexed connections per node.
	Size int `koanf:"size"`
}

// RedirectSection configures redirect following.
type RedirectSection struct {
	// MaxAttempts is the per-command budget of sends across all
	// redirects and retries.
	MaxAttempts int `koanf:"max_attempts"`

	// TryAgainBackoff is the initial delay before retrying after a
	// TRYAGAIN reply.
	TryAgainBackoff time.Duration `koanf:"tryagain_backoff"`
}

// RefreshSection configures background topology refresh.
type RefreshSection struct {
	// Interval between periodic refreshes; zero disables them.
	Interval time.Duration `koanf:"interval"`

	// MinInterval throttles redirect-triggered refreshes.
	MinInterval time.Duration `koanf:"min_interval"`
}

// TimeoutSection configures I/O deadlines.
type TimeoutSection struct {
	// Dial bounds the TCP connect to one node.
	Dial time.Duration `koanf:"dial"`

	// Node bounds one discovery exchange during refresh.
	Node time.Duration `koanf:"node"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures metrics exposure.
type MetricsSection struct {
	// Addr is the listen address for the Prometheus endpoint; empty
	// disables it.
	Addr string `koanf:"addr"`
}
