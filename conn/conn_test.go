package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/thachlp/lettuce/command"
	"github.com/thachlp/lettuce/resp"
)

// testServer is a minimal in-process server speaking the wire
// protocol: it reads command frames and answers each with a bulk
// string echoing the first argument (or +PONG for PING).
type testServer struct {
	ln     net.Listener
	mu     sync.Mutex
	accept []net.Conn

	// closeAfter makes the server drop the connection after that many
	// commands; 0 means never.
	closeAfter int
}

func startTestServer(t *testing.T, closeAfter int) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &testServer{ln: ln, closeAfter: closeAfter}
	go s.loop()
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *testServer) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.accept {
		_ = c.Close()
	}
}

func (s *testServer) loop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accept = append(s.accept, nc)
		s.mu.Unlock()
		go s.serve(nc)
	}
}

func (s *testServer) serve(nc net.Conn) {
	r := resp.NewReader(nc)
	w := resp.NewWriter(nc)
	served := 0
	for {
		frame, err := r.ReadReply()
		if err != nil {
			return
		}
		served++
		if s.closeAfter > 0 && served > s.closeAfter {
			_ = nc.Close()
			return
		}

		name := string(frame.Elems[0].Bulk)
		switch name {
		case "PING":
			_, _ = nc.Write([]byte("+PONG\r\n"))
		case "ASKING":
			_, _ = nc.Write([]byte("+OK\r\n"))
		default:
			var arg []byte
			if len(frame.Elems) > 1 {
				arg = frame.Elems[1].Bulk
			}
			if err := w.WriteCommand(string(arg), nil); err != nil {
				return
			}
			_ = w.Flush()
		}
	}
}

func dialTest(t *testing.T, addr string) *Conn {
	t.Helper()
	c, err := Dial(context.Background(), addr, Config{DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// ============================================================
// Ordering and Correlation Tests
// ============================================================

func TestConn_FIFOCorrelation(t *testing.T) {
	s := startTestServer(t, 0)
	c := dialTest(t, s.Addr())

	const n = 50
	cmds := make([]*command.Command, n)
	for i := 0; i < n; i++ {
		payload := []byte(fmt.Sprintf("payload-%03d", i))
		cmds[i] = command.New("ECHO", nil, payload)
		if err := c.Send(cmds[i]); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i, cmd := range cmds {
		reply, err := cmd.Completion().Wait(ctx)
		if err != nil {
			t.Fatalf("cmd %d failed: %v", i, err)
		}
		// The echo server answers with the argument as an array header
		// trick: reply is a 1-element array named after the payload.
		got := string(reply.Elems[0].Bulk)
		want := fmt.Sprintf("payload-%03d", i)
		if got != want {
			t.Fatalf("cmd %d got reply for %q, want %q: FIFO correlation broken", i, got, want)
		}
	}
}

func TestConn_ConcurrentSubmitters(t *testing.T) {
	s := startTestServer(t, 0)
	c := dialTest(t, s.Addr())

	const goroutines = 8
	const perG = 25
	var wg sync.WaitGroup
	errs := make(chan error, goroutines*perG)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				payload := fmt.Sprintf("g%d-i%d", g, i)
				cmd := command.New("ECHO", nil, []byte(payload))
				if err := c.Send(cmd); err != nil {
					errs <- err
					return
				}
				reply, err := cmd.Completion().Wait(context.Background())
				if err != nil {
					errs <- err
					return
				}
				if got := string(reply.Elems[0].Bulk); got != payload {
					errs <- fmt.Errorf("got %q, want %q", got, payload)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

// ============================================================
// Failure Tests
// ============================================================

func TestConn_FailureFailsExactlyOwnInflight(t *testing.T) {
	dying := startTestServer(t, 1) // serves one command, then drops
	healthy := startTestServer(t, 0)

	bad := dialTest(t, dying.Addr())
	good := dialTest(t, healthy.Addr())

	// One command succeeds on the dying connection, then queue three
	// more the server will never answer.
	first := command.New("ECHO", nil, []byte("ok"))
	if err := bad.Send(first); err != nil {
		t.Fatalf("Send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := first.Completion().Wait(ctx); err != nil {
		t.Fatalf("first command failed: %v", err)
	}

	// Depending on timing, Send either queues the command (failed
	// later by teardown) or already reports the loss itself; both
	// surface ErrConnectionLost, just on different paths.
	var doomed []*command.Command
	for i := 0; i < 3; i++ {
		cmd := command.New("ECHO", nil, []byte("doomed"))
		if err := bad.Send(cmd); err != nil {
			if !errors.Is(err, command.ErrConnectionLost) {
				t.Fatalf("Send error = %v, want ErrConnectionLost", err)
			}
			continue
		}
		doomed = append(doomed, cmd)
	}

	onGood := command.New("ECHO", nil, []byte("fine"))
	if err := good.Send(onGood); err != nil {
		t.Fatalf("Send on healthy conn: %v", err)
	}

	for i, cmd := range doomed {
		_, err := cmd.Completion().Wait(ctx)
		if err == nil {
			t.Fatalf("doomed cmd %d succeeded after connection loss", i)
		}
		if !errors.Is(err, command.ErrConnectionLost) {
			t.Errorf("doomed cmd %d error = %v, want ErrConnectionLost", i, err)
		}
	}

	reply, err := onGood.Completion().Wait(ctx)
	if err != nil {
		t.Fatalf("command on healthy conn failed: %v", err)
	}
	if got := string(reply.Elems[0].Bulk); got != "fine" {
		t.Errorf("healthy reply = %q, want fine", got)
	}

	if bad.State() != StateClosed {
		t.Errorf("bad conn state = %v, want closed", bad.State())
	}
	if good.State() != StateReady {
		t.Errorf("good conn state = %v, want ready", good.State())
	}
}

func TestConn_SendOnClosed(t *testing.T) {
	s := startTestServer(t, 0)
	c := dialTest(t, s.Addr())
	c.Close()

	// Close with an empty queue tears down immediately.
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateClosed && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	err := c.Send(command.New("PING", nil))
	if !errors.Is(err, command.ErrConnectionLost) {
		t.Errorf("Send on closed conn error = %v, want ErrConnectionLost", err)
	}
}

// ============================================================
// ASKING Primer Tests
// ============================================================

func TestConn_SendAskingDiscardsPrimerReply(t *testing.T) {
	s := startTestServer(t, 0)
	c := dialTest(t, s.Addr())

	cmd := command.New("ECHO", nil, []byte("after-asking"))
	if err := c.SendAsking(cmd); err != nil {
		t.Fatalf("SendAsking: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := cmd.Completion().Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	// The +OK for ASKING must have been swallowed; the command sees
	// its own echo, not the primer's reply.
	if reply.Kind == resp.KindSimpleString {
		t.Fatalf("command received the primer reply %q", reply.Str)
	}
	if got := string(reply.Elems[0].Bulk); got != "after-asking" {
		t.Errorf("reply = %q, want after-asking", got)
	}
}

// ============================================================
// Pool Tests
// ============================================================

func TestPool_LazyDialAndReuse(t *testing.T) {
	s := startTestServer(t, 0)
	p := NewPool(s.Addr(), 2, Config{DialTimeout: time.Second})
	t.Cleanup(p.Close)

	if p.Len() != 0 {
		t.Errorf("fresh pool has %d conns, want 0", p.Len())
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		cmd := command.New("ECHO", nil, []byte("x"))
		if err := p.Send(ctx, cmd); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if _, err := cmd.Completion().Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	if got := p.Len(); got < 1 || got > 2 {
		t.Errorf("pool size = %d, want 1..2", got)
	}
}

func TestPool_ReplacesBrokenConn(t *testing.T) {
	s := startTestServer(t, 1)
	p := NewPool(s.Addr(), 1, Config{DialTimeout: time.Second})
	t.Cleanup(p.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok := command.New("ECHO", nil, []byte("one"))
	if err := p.Send(ctx, ok); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := ok.Completion().Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// Next command dies with the connection; the one after that gets a
	// fresh connection.
	dead := command.New("ECHO", nil, []byte("two"))
	if err := p.Send(ctx, dead); err == nil {
		_, _ = dead.Completion().Wait(ctx)
	}

	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		again := command.New("ECHO", nil, []byte("three"))
		if lastErr = p.Send(ctx, again); lastErr == nil {
			if _, lastErr = again.Completion().Wait(ctx); lastErr == nil {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if lastErr != nil {
		t.Fatalf("pool never recovered: %v", lastErr)
	}
}

func TestPool_Closed(t *testing.T) {
	s := startTestServer(t, 0)
	p := NewPool(s.Addr(), 1, Config{DialTimeout: time.Second})
	p.Close()

	err := p.Send(context.Background(), command.New("PING", nil))
	if !errors.Is(err, command.ErrClientClosed) {
		t.Errorf("Send on closed pool error = %v, want ErrClientClosed", err)
	}
}
