// Package client is the user-facing entry point: it owns the node
// pools, the routing machinery and the background refresher, and
// exposes command dispatch against a cluster or a single node.
package client

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/thachlp/lettuce/cluster"
	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/config"
	"github.com/thachlp/lettuce/conn"
	"github.com/thachlp/lettuce/internal/telemetry/logger"
	"github.com/thachlp/lettuce/internal/telemetry/metric"
	"github.com/thachlp/lettuce/pkg/cmap"
	"github.com/thachlp/lettuce/resp"
)

// Client routes commands to the right cluster node and follows the
// server's redirections. One Client is safe for concurrent use; its
// connections are multiplexed, there is no checkout.
type Client struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Metrics

	holder    *cluster.Holder
	pools     *cmap.Map[*conn.Pool]
	router    *cluster.Router
	refresher *cluster.Refresher

	metricsSrv *http.Server
	closed     atomic.Bool

	// reloadMu guards config fields writable by WatchConfig.
	reloadMu sync.Mutex
}

// New builds a client from cfg and performs the bootstrap discovery.
// In cluster mode the seeds are contacted, with backoff, until one
// yields a slot table; single-node mode pins everything to the first
// seed and needs no discovery.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		log: logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		}),
		metrics: metric.Nop(),
		pools:   cmap.New[*conn.Pool](),
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		c.metrics = metric.New(reg)
		c.metricsSrv = &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: metric.Handler(reg),
		}
		go func() {
			if err := c.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				c.log.Error("metrics listener failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	if !cfg.Cluster.Enabled {
		c.holder = cluster.NewHolder(cluster.Single(cfg.Seeds[0]))
		c.router = cluster.NewRouter(c.holder, c, nil, c.routerConfig())
		c.log.Info("client ready", "mode", "single", "node", cfg.Seeds[0])
		return c, nil
	}

	c.holder = cluster.NewHolder(nil)
	c.refresher = cluster.NewRefresher(c.holder, c, cfg.Seeds, cluster.RefresherConfig{
		Interval:    cfg.Refresh.Interval,
		MinInterval: cfg.Refresh.MinInterval,
		NodeTimeout: cfg.Timeout.Node,
		Log:         c.log,
		Metrics:     c.metrics,
	})
	c.router = cluster.NewRouter(c.holder, c, c.refresher.Kick, c.routerConfig())

	if err := c.bootstrap(ctx); err != nil {
		c.shutdownPools()
		c.stopMetrics()
		return nil, err
	}
	c.refresher.Start()

	topo := c.holder.Load()
	c.log.Info("client ready",
		"mode", "cluster",
		"nodes", len(topo.Nodes()),
		"topology_version", topo.Version())
	return c, nil
}

func (c *Client) routerConfig() cluster.RouterConfig {
	return cluster.RouterConfig{
		MaxAttempts:     c.cfg.Redirect.MaxAttempts,
		TryAgainBackoff: c.cfg.Redirect.TryAgainBackoff,
		Log:             c.log,
		Metrics:         c.metrics,
	}
}

// bootstrap retries the initial discovery with exponential backoff;
// transient seed failures at startup should not kill the client.
func (c *Client) bootstrap(ctx context.Context) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		_, err := c.refresher.Refresh(ctx)
		return err
	}, backoff.WithMaxRetries(bo, 4))
}

// Dispatch hands the command to the router and returns its completion
// immediately. The caller waits on it when the reply matters.
func (c *Client) Dispatch(ctx context.Context, cmd *command.Command) *command.Completion {
	if c.closed.Load() {
		done := cmd.Completion()
		done.Fail(command.ErrClientClosed)
		return done
	}
	return c.router.Dispatch(ctx, cmd)
}

// Do builds a command, dispatches it and waits for the reply. keys
// steer the slot choice; pass nil for keyless commands.
func (c *Client) Do(ctx context.Context, name string, keys [][]byte, args ...[]byte) (*resp.Reply, error) {
	return c.Dispatch(ctx, command.New(name, keys, args...)).Wait(ctx)
}

// Topology returns the active snapshot, nil before bootstrap.
func (c *Client) Topology() *cluster.Topology {
	return c.holder.Load()
}

// RefreshTopology forces a synchronous topology rebuild. In
// single-node mode it is a no-op returning the pinned snapshot.
func (c *Client) RefreshTopology(ctx context.Context) (*cluster.Topology, error) {
	if c.closed.Load() {
		return nil, command.ErrClientClosed
	}
	if c.refresher == nil {
		return c.holder.Load(), nil
	}
	return c.refresher.Refresh(ctx)
}

// Close stops the refresher and closes every pool. In-flight commands
// fail with ConnectionLost; Close does not wait for them.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.refresher != nil {
		c.refresher.Stop()
	}
	c.shutdownPools()
	c.stopMetrics()
	c.log.Info("client closed")
}

func (c *Client) shutdownPools() {
	// Delete inside Range would re-take the shard lock Range already
	// holds; take a key snapshot and Pop instead.
	for _, addr := range c.pools.Keys() {
		if p, ok := c.pools.Pop(addr); ok {
			p.Close()
		}
	}
}

func (c *Client) stopMetrics() {
	if c.metricsSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.metricsSrv.Shutdown(ctx)
}

// Send implements cluster.Sender against the per-node pool registry.
func (c *Client) Send(ctx context.Context, addr string, cmd *command.Command) error {
	if c.closed.Load() {
		return command.ErrClientClosed
	}
	return c.pool(addr).Send(ctx, cmd)
}

// SendAsking implements cluster.Sender for ASK follow-ups.
func (c *Client) SendAsking(ctx context.Context, addr string, cmd *command.Command) error {
	if c.closed.Load() {
		return command.ErrClientClosed
	}
	return c.pool(addr).SendAsking(ctx, cmd)
}

// pool returns the node's pool, creating it on first use. Pools dial
// lazily, so losing the creation race costs nothing.
func (c *Client) pool(addr string) *conn.Pool {
	if p, ok := c.pools.Get(addr); ok {
		return p
	}
	p, _ := c.pools.GetOrSet(addr, conn.NewPool(addr, c.cfg.Pool.Size, conn.Config{
		DialTimeout: c.cfg.Timeout.Dial,
		Log:         c.log,
		Metrics:     c.metrics,
	}))
	return p
}
