// Package writer implements the sinks that dispatched events are handed to.
//
// Sinks:
//   - LogSink: one structured log line per event
//   - EventWriter: batched inserts into the delivered_events table
//   - Tee: fan-out to several sinks
//
// EventWriter is append-only. Redelivery of the same event to the same
// endpoint is absorbed by the primary key.
package writer
