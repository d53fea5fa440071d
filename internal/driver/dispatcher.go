package driver

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/rickgao/tcplink/internal/connection"
	"github.com/rickgao/tcplink/internal/writer"
)

// InboxSource drains every session inbox.
type InboxSource interface {
	DrainInboxes() []connection.InboxBatch
}

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	Interval time.Duration // Drain interval (default: 1s)
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Interval: time.Second}
}

// DispatcherStats holds dispatcher counters.
type DispatcherStats struct {
	Cycles     int64 `json:"cycles"`
	Dispatched int64 `json:"dispatched"`
	Errors     int64 `json:"errors"`
}

// Dispatcher periodically drains inboxes into a sink. Each cycle's records
// are written in endpoint order, and in arrival order within one endpoint.
type Dispatcher struct {
	cfg    DispatcherConfig
	source InboxSource
	sink   writer.Sink
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	cycles     atomic.Int64
	dispatched atomic.Int64
	errors     atomic.Int64
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg DispatcherConfig, source InboxSource, sink writer.Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultDispatcherConfig().Interval
	}
	return &Dispatcher{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Go(d.run)

	d.logger.Info("dispatcher started", "interval", d.cfg.Interval)
	return nil
}

// Stop halts the loop and runs one last cycle so buffered events are not left
// behind.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	if err := wait(ctx, &d.wg); err != nil {
		return err
	}

	d.dispatch(ctx)

	d.logger.Info("dispatcher stopped",
		"cycles", d.cycles.Load(),
		"dispatched", d.dispatched.Load(),
	)
	return nil
}

// Stats returns current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Cycles:     d.cycles.Load(),
		Dispatched: d.dispatched.Load(),
		Errors:     d.errors.Load(),
	}
}

func (d *Dispatcher) run() {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.dispatch(d.ctx)
		}
	}
}

// dispatch runs one drain cycle.
func (d *Dispatcher) dispatch(ctx context.Context) {
	d.cycles.Add(1)

	batches := d.source.DrainInboxes()
	if len(batches) == 0 {
		return
	}

	now := time.Now()
	var records []writer.Record
	for _, b := range batches {
		for _, ev := range b.Events {
			records = append(records, writer.Record{
				Endpoint:    b.Key,
				SessionID:   b.SessionID,
				Event:       ev,
				DeliveredAt: now,
			})
		}
	}

	if err := d.sink.Write(ctx, records); err != nil {
		d.errors.Add(1)
		d.logger.Warn("sink write failed", "err", err, "count", len(records))
		return
	}

	d.dispatched.Add(int64(len(records)))
	d.logger.Debug("dispatch cycle complete",
		"sessions", len(batches),
		"events", len(records),
	)
}
