package connection

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tcplink/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// peer is a loopback TCP server recording every line it receives.
type peer struct {
	ln       net.Listener
	accepted atomic.Int32

	mu    sync.Mutex
	lines []string
}

// startPeer listens on loopback and runs handle for each accepted conn.
// A nil handle replies "ok:<line>" to every line.
func startPeer(t *testing.T, handle func(p *peer, conn net.Conn)) *peer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if handle == nil {
		handle = replyOK
	}

	p := &peer{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			p.accepted.Add(1)
			go func() {
				defer conn.Close()
				handle(p, conn)
			}()
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return p
}

func replyOK(p *peer, conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		p.record(line)
		if _, err := conn.Write([]byte("ok:" + line + "\n")); err != nil {
			return
		}
	}
}

// hangUpAfterOne reads one line and closes without replying.
func hangUpAfterOne(p *peer, conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	if scanner.Scan() {
		p.record(scanner.Text())
	}
}

func (p *peer) record(line string) {
	p.mu.Lock()
	p.lines = append(p.lines, line)
	p.mu.Unlock()
}

func (p *peer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func (p *peer) Config(class model.SubscriptionClass, autoReconnect bool) model.ConnectionConfig {
	addr := p.ln.Addr().(*net.TCPAddr)
	return model.ConnectionConfig{
		Host:          addr.IP.String(),
		Port:          uint16(addr.Port),
		AutoReconnect: autoReconnect,
		Class:         class,
	}
}

func (p *peer) Key() model.EndpointKey {
	return model.EndpointKey(p.ln.Addr().String())
}

// frameRecorder collects inbound frames.
type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) HandleFrame(f Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *frameRecorder) Data() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.frames))
	for i, f := range r.frames {
		out[i] = string(f.Data)
	}
	return out
}

type closeCall struct {
	key           model.EndpointKey
	sessionID     uuid.UUID
	needReconnect bool
}

// closeRecorder is a DisconnectHandler that remembers every call.
type closeRecorder struct {
	mu    sync.Mutex
	calls []closeCall
}

func (r *closeRecorder) SessionClosed(key model.EndpointKey, sessionID uuid.UUID, needReconnect bool) {
	r.mu.Lock()
	r.calls = append(r.calls, closeCall{key, sessionID, needReconnect})
	r.mu.Unlock()
}

func (r *closeRecorder) Calls() []closeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]closeCall(nil), r.calls...)
}

var errRefused = errors.New("connection refused")

// failingDialer counts attempts and always fails.
type failingDialer struct {
	mu       sync.Mutex
	attempts []time.Time
}

func (d *failingDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.attempts = append(d.attempts, time.Now())
	d.mu.Unlock()
	return nil, errRefused
}

func (d *failingDialer) Attempts() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.attempts...)
}

// hangingDial never connects; it returns once ctx is cancelled.
func hangingDial(ctx context.Context, network, address string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testManagerConfig(delay time.Duration) ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.Session.ConnectTimeout = time.Second
	cfg.Session.WriteTimeout = time.Second
	cfg.Reconnect.Delay = delay
	return cfg
}
