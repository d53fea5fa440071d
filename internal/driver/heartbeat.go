package driver

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
)

// Broadcaster queues a message on every live session.
type Broadcaster interface {
	Broadcast(msg []byte) int
}

// HeartbeatConfig holds heartbeat configuration.
type HeartbeatConfig struct {
	Interval time.Duration // Broadcast interval (default: 1s)
	Payload  []byte        // Keep-alive message (default: "hello\n")
}

// DefaultHeartbeatConfig returns sensible defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: time.Second,
		Payload:  []byte("hello\n"),
	}
}

// Heartbeat periodically broadcasts a keep-alive payload.
type Heartbeat struct {
	cfg    HeartbeatConfig
	target Broadcaster
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	beats atomic.Int64
}

// NewHeartbeat creates a new Heartbeat.
func NewHeartbeat(cfg HeartbeatConfig, target Broadcaster, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHeartbeatConfig().Interval
	}
	if len(cfg.Payload) == 0 {
		cfg.Payload = DefaultHeartbeatConfig().Payload
	}
	return &Heartbeat{
		cfg:    cfg,
		target: target,
		logger: logger,
	}
}

// Start begins the heartbeat loop.
func (h *Heartbeat) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Go(h.run)

	h.logger.Info("heartbeat started", "interval", h.cfg.Interval)
	return nil
}

// Stop halts the loop.
func (h *Heartbeat) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}
	if err := wait(ctx, &h.wg); err != nil {
		return err
	}
	h.logger.Info("heartbeat stopped", "beats", h.beats.Load())
	return nil
}

// Beats returns how many broadcasts have been issued.
func (h *Heartbeat) Beats() int64 {
	return h.beats.Load()
}

func (h *Heartbeat) run() {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() {
	n := h.target.Broadcast(h.cfg.Payload)
	h.beats.Add(1)
	h.logger.Debug("heartbeat sent", "sessions", n)
}
