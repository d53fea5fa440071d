package writer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tcplink/internal/model"
)

// Record is one event delivered to one connection slot.
type Record struct {
	Endpoint    model.EndpointKey
	SessionID   uuid.UUID
	Event       model.Event
	DeliveredAt time.Time
}

// Sink receives delivered events. Write must not retain records after it
// returns.
type Sink interface {
	Write(ctx context.Context, records []Record) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(ctx context.Context, records []Record) error

func (f SinkFunc) Write(ctx context.Context, records []Record) error {
	return f(ctx, records)
}

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
	}
}

// eventRow represents a row for the delivered_events table.
type eventRow struct {
	EventID     uuid.UUID
	Endpoint    string
	SessionID   uuid.UUID
	Class       string
	Payload     []byte
	PublishedAt time.Time
	DeliveredAt time.Time
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
