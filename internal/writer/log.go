package writer

import (
	"context"
	"log/slog"
)

// LogSink logs every record.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a LogSink writing at Info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: slog.LevelInfo}
}

// Write logs one line per record.
func (s *LogSink) Write(ctx context.Context, records []Record) error {
	for _, r := range records {
		s.logger.Log(ctx, s.level, "event delivered",
			"endpoint", r.Endpoint,
			"class", r.Event.Class,
			"event_id", r.Event.ID.String(),
			"payload", string(r.Event.Payload),
		)
	}
	return nil
}
