// Package metric provides Prometheus metrics for the client engine.
//
// It exposes dispatch rates, redirect counts, topology refresh
// outcomes and connection pool state.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all engine metrics.
type Metrics struct {
	// CommandsTotal counts dispatched commands by final status
	// (ok, error, redirected_ok).
	CommandsTotal *prometheus.CounterVec

	// CommandSeconds observes end-to-end dispatch latency, redirects
	// included.
	CommandSeconds prometheus.Histogram

	// RedirectsTotal counts redirect replies by kind
	// (moved, ask, tryagain, clusterdown).
	RedirectsTotal *prometheus.CounterVec

	// RefreshesTotal counts topology refreshes by outcome
	// (ok, inconsistent, unreachable).
	RefreshesTotal *prometheus.CounterVec

	// TopologyVersion is the version of the active topology snapshot.
	TopologyVersion prometheus.Gauge

	// InFlight is the number of commands awaiting replies.
	InFlight prometheus.Gauge

	// ConnsOpen is the number of open connections across all pools.
	ConnsOpen prometheus.Gauge
}

// New registers and returns all engine metrics on reg. Pass a fresh
// prometheus.NewRegistry() when embedding several clients in one
// process.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lettuce",
			Name:      "commands_total",
			Help:      "Dispatched commands by final status.",
		}, []string{"status"}),

		CommandSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lettuce",
			Name:      "command_seconds",
			Help:      "End-to-end command latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),

		RedirectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lettuce",
			Name:      "redirects_total",
			Help:      "Redirect replies by kind.",
		}, []string{"kind"}),

		RefreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lettuce",
			Name:      "topology_refreshes_total",
			Help:      "Topology refresh attempts by outcome.",
		}, []string{"outcome"}),

		TopologyVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lettuce",
			Name:      "topology_version",
			Help:      "Version of the active topology snapshot.",
		}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lettuce",
			Name:      "inflight_commands",
			Help:      "Commands currently awaiting replies.",
		}),

		ConnsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lettuce",
			Name:      "connections_open",
			Help:      "Open connections across all node pools.",
		}),
	}
}

// Nop returns metrics bound to a throwaway registry, for tests and
// for embedders that do not scrape.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns an HTTP handler serving reg in the Prometheus text
// format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
