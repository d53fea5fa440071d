package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the delivered_events table and its index.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS delivered_events (
		event_id     UUID        NOT NULL,
		endpoint     TEXT        NOT NULL,
		session_id   UUID        NOT NULL,
		class        TEXT        NOT NULL,
		payload      BYTEA       NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		delivered_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, endpoint)
	)`,
	`CREATE INDEX IF NOT EXISTS delivered_events_endpoint_time
		ON delivered_events (endpoint, delivered_at)`,
}

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
