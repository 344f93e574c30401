package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/internal/telemetry/logger"
	"github.com/thachlp/lettuce/resp"
)

// ============================================================
// Fake discovery node
// ============================================================

// discoverySender answers CLUSTER SLOTS per address: listed addresses
// fail their send, everyone else returns the canned slot table.
type discoverySender struct {
	mu    sync.Mutex
	asked []string
	fail  map[string]error
	reply func() *resp.Reply
}

func (d *discoverySender) Send(ctx context.Context, addr string, cmd *command.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.asked = append(d.asked, addr)
	if err, ok := d.fail[addr]; ok {
		return err
	}
	r := slotsReply()
	if d.reply != nil {
		r = d.reply()
	}
	cmd.Completion().Resolve(r)
	return nil
}

func (d *discoverySender) SendAsking(ctx context.Context, addr string, cmd *command.Command) error {
	return d.Send(ctx, addr, cmd)
}

func (d *discoverySender) askedAddrs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.asked...)
}

func newTestRefresher(h *Holder, s Sender, seeds []string) *Refresher {
	return NewRefresher(h, s, seeds, RefresherConfig{
		MinInterval: time.Hour, // kicks beyond the first are dropped
		NodeTimeout: time.Second,
		Log:         logger.Nop(),
	})
}

// ============================================================
// Refresh
// ============================================================

func TestRefresherBootstrapFromSeed(t *testing.T) {
	h := NewHolder(nil)
	s := &discoverySender{}
	r := newTestRefresher(h, s, []string{"seed:6379"})

	topo, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if h.Load() != topo {
		t.Error("refresh did not install the new snapshot")
	}
	if topo.Version() == 0 {
		t.Error("snapshot version not assigned")
	}
	if got := s.askedAddrs(); len(got) != 1 || got[0] != "seed:6379" {
		t.Errorf("asked %v, want just the seed", got)
	}
}

func TestRefresherPrefersKnownNodesOverSeeds(t *testing.T) {
	h := NewHolder(twoNodeTopology(1))
	s := &discoverySender{}
	r := newTestRefresher(h, s, []string{"seed:6379"})

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	asked := s.askedAddrs()
	if len(asked) != 1 {
		t.Fatalf("asked %d nodes, want 1 (first success wins)", len(asked))
	}
	if asked[0] == "seed:6379" {
		t.Error("asked the seed although topology nodes are known")
	}
}

func TestRefresherFallsThroughFailedCandidates(t *testing.T) {
	h := NewHolder(twoNodeTopology(1))
	s := &discoverySender{fail: map[string]error{
		"10.0.0.1:7000": command.ErrConnectionLost.WithDetails("down"),
	}}
	r := newTestRefresher(h, s, nil)

	topo, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if topo == nil {
		t.Fatal("no topology despite a healthy candidate")
	}

	asked := s.askedAddrs()
	if len(asked) != 2 {
		t.Fatalf("asked %v, want the failed node then the next", asked)
	}
}

func TestRefresherKeepsLastGoodOnTotalFailure(t *testing.T) {
	last := twoNodeTopology(1)
	h := NewHolder(last)
	s := &discoverySender{fail: map[string]error{
		"10.0.0.1:7000": errors.New("refused"),
		"10.0.0.2:7000": errors.New("refused"),
		"seed:6379":     errors.New("refused"),
	}}
	r := newTestRefresher(h, s, []string{"seed:6379"})

	_, err := r.Refresh(context.Background())
	if !errors.Is(err, command.ErrTopologyRefreshFailed) {
		t.Fatalf("Refresh = %v, want TopologyRefreshFailed", err)
	}
	if h.Load() != last {
		t.Error("total failure replaced the last good snapshot")
	}
}

func TestRefresherRejectsInconsistentTable(t *testing.T) {
	h := NewHolder(twoNodeTopology(1))
	s := &discoverySender{reply: func() *resp.Reply {
		// A table with a coverage gap must not be believed.
		return arr(arr(num(0), num(100), nodeEntry("10.0.0.1", 7000, "id-a")))
	}}
	r := newTestRefresher(h, s, nil)

	_, err := r.Refresh(context.Background())
	if !errors.Is(err, command.ErrTopologyRefreshFailed) {
		t.Fatalf("Refresh = %v, want TopologyRefreshFailed", err)
	}
	if h.Load().Version() != 1 {
		t.Error("inconsistent table replaced the snapshot")
	}
}

func TestRefresherVersionOutrunsPatches(t *testing.T) {
	h := NewHolder(twoNodeTopology(1))
	s := &discoverySender{}
	r := newTestRefresher(h, s, nil)

	// MOVED patches bump the live version past the refresher's counter.
	for i := 0; i < 5; i++ {
		h.PatchSlot(uint16(i), "10.0.0.9:7000")
	}
	patched := h.Load().Version()

	topo, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if topo.Version() <= patched {
		t.Errorf("refreshed version %d not above patched version %d", topo.Version(), patched)
	}
}

// ============================================================
// Background loop
// ============================================================

func TestRefresherKickTriggersRefresh(t *testing.T) {
	h := NewHolder(nil)
	s := &discoverySender{}
	r := newTestRefresher(h, s, []string{"seed:6379"})

	r.Start()
	defer r.Stop()

	r.Kick()

	deadline := time.After(5 * time.Second)
	for h.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("kick did not produce a topology")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRefresherKickIsThrottled(t *testing.T) {
	h := NewHolder(nil)
	s := &discoverySender{}
	r := newTestRefresher(h, s, []string{"seed:6379"})

	r.Start()
	r.Kick()

	deadline := time.After(5 * time.Second)
	for h.Load() == nil {
		select {
		case <-deadline:
			t.Fatal("first kick did not produce a topology")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// A storm of kicks inside MinInterval collapses to nothing more.
	for i := 0; i < 50; i++ {
		r.Kick()
	}
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	if got := len(s.askedAddrs()); got != 1 {
		t.Errorf("discovery ran %d times, want 1 (kicks throttled)", got)
	}
}

func TestRefresherStopIsIdempotent(t *testing.T) {
	r := newTestRefresher(NewHolder(nil), &discoverySender{}, nil)
	r.Start()
	r.Start() // no-op
	r.Stop()
	r.Stop() // no-op
}
