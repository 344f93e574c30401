package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/internal/telemetry/logger"
	"github.com/thachlp/lettuce/internal/telemetry/metric"
)

// RefresherConfig tunes background topology discovery.
type RefresherConfig struct {
	// Interval between periodic refreshes. Zero disables the ticker;
	// on-demand kicks still work.
	Interval time.Duration

	// MinInterval throttles on-demand kicks: at most one kick-driven
	// refresh per MinInterval, bursts of redirect storms collapse into
	// a single rebuild.
	MinInterval time.Duration

	// NodeTimeout bounds the discovery exchange with one candidate
	// before moving on to the next.
	NodeTimeout time.Duration

	Log     logger.Logger
	Metrics *metric.Metrics
}

func (c *RefresherConfig) withDefaults() RefresherConfig {
	out := *c
	if out.Interval < 0 {
		out.Interval = 0
	}
	if out.MinInterval <= 0 {
		out.MinInterval = 10 * time.Second
	}
	if out.NodeTimeout <= 0 {
		out.NodeTimeout = 5 * time.Second
	}
	if out.Log == nil {
		out.Log = logger.Default()
	}
	if out.Metrics == nil {
		out.Metrics = metric.Nop()
	}
	return out
}

// Refresher rebuilds the topology snapshot by asking cluster nodes for
// their slot table. Candidates are tried one by one, first usable
// answer wins; if every candidate fails the last good snapshot stays
// in place.
type Refresher struct {
	holder  *Holder
	sender  Sender
	seeds   []string
	cfg     RefresherConfig
	limiter *rate.Limiter
	version atomic.Uint64
	kick    chan struct{}

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewRefresher creates a refresher. seeds are the bootstrap addresses;
// once a topology exists its own nodes are preferred over the seeds.
func NewRefresher(holder *Holder, sender Sender, seeds []string, cfg RefresherConfig) *Refresher {
	r := &Refresher{
		holder: holder,
		sender: sender,
		seeds:  append([]string(nil), seeds...),
		cfg:    cfg.withDefaults(),
		kick:   make(chan struct{}, 1),
	}
	r.limiter = rate.NewLimiter(rate.Every(r.cfg.MinInterval), 1)
	if t := holder.Load(); t != nil {
		r.version.Store(t.Version())
	}
	return r
}

// Kick requests an asynchronous refresh. Calls beyond the throttle are
// dropped; the topology was either just rebuilt or is about to be.
func (r *Refresher) Kick() {
	if !r.limiter.Allow() {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Start launches the background loop. It is a no-op if already running.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.stop, r.done)
}

// Stop halts the background loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}

func (r *Refresher) loop(stop, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if r.cfg.Interval > 0 {
		t := time.NewTicker(r.cfg.Interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-stop:
			return
		case <-tick:
		case <-r.kick:
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.refreshBudget())
		if _, err := r.Refresh(ctx); err != nil {
			r.cfg.Log.Warn("topology refresh failed", "error", err)
		}
		cancel()
	}
}

func (r *Refresher) refreshBudget() time.Duration {
	n := len(r.seeds)
	if t := r.holder.Load(); t != nil {
		n += len(t.Nodes())
	}
	if n < 1 {
		n = 1
	}
	return time.Duration(n) * r.cfg.NodeTimeout
}

// Refresh synchronously rebuilds the topology and swaps it in. On
// total failure the previous snapshot is kept and TopologyRefreshFailed
// is returned with the last node's error as cause.
func (r *Refresher) Refresh(ctx context.Context) (*Topology, error) {
	var lastErr error
	for _, addr := range r.candidates() {
		topo, err := r.discoverFrom(ctx, addr)
		if err != nil {
			lastErr = err
			r.cfg.Log.Debug("discovery candidate failed", "addr", addr, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		r.holder.Store(topo)
		r.cfg.Metrics.RefreshesTotal.WithLabelValues("ok").Inc()
		r.cfg.Metrics.TopologyVersion.Set(float64(topo.Version()))
		r.cfg.Log.Info("topology refreshed",
			"version", topo.Version(),
			"nodes", len(topo.Nodes()),
			"source", addr)
		return topo, nil
	}

	r.cfg.Metrics.RefreshesTotal.WithLabelValues("failed").Inc()
	err := command.ErrTopologyRefreshFailed.WithDetails("all discovery candidates failed")
	if lastErr != nil {
		err = err.WithCause(lastErr)
	}
	return nil, err
}

// candidates lists discovery targets: the nodes of the current
// topology first (they are known live members), then the configured
// seeds as fallback, deduplicated.
func (r *Refresher) candidates() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	if t := r.holder.Load(); t != nil {
		for _, n := range t.Nodes() {
			add(n.Addr)
		}
	}
	for _, s := range r.seeds {
		add(s)
	}
	return out
}

func (r *Refresher) discoverFrom(ctx context.Context, addr string) (*Topology, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.NodeTimeout)
	defer cancel()

	cmd := command.New("CLUSTER", nil, []byte("SLOTS"))
	cmd.Node = addr
	if err := r.sender.Send(ctx, addr, cmd); err != nil {
		return nil, err
	}
	reply, err := cmd.Completion().Wait(ctx)
	if err != nil {
		return nil, err
	}
	if reply.IsError() {
		return nil, command.ErrTopologyInconsistent.WithDetails(reply.ErrorLine())
	}
	return ParseSlots(reply, r.nextVersion())
}

// nextVersion keeps the counter ahead of the active snapshot, whose
// version may have advanced through MOVED patches.
func (r *Refresher) nextVersion() uint64 {
	next := r.version.Add(1)
	if t := r.holder.Load(); t != nil && t.Version() >= next {
		next = t.Version() + 1
		r.version.Store(next)
	}
	return next
}
