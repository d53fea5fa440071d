// Package connection implements the self-healing TCP connection pool.
//
// The pool:
//   - Keeps one Session per configured endpoint, each with its own serialized
//     write/read pipeline
//   - Detects disconnects and reconnects on a fixed (or exponential) delay
//   - Holds a per-session Inbox for events pushed by external publishers
//   - Lets reload, close and reconnect race safely under one registry lock
package connection
