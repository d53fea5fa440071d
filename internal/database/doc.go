// Package database provides the PostgreSQL connection pool for the optional
// delivered-event store.
//
// The store holds one append-only table, delivered_events, keyed by
// (event_id, endpoint).
package database
