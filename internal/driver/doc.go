// Package driver runs the registry's periodic work.
//
// Heartbeat broadcasts a keep-alive payload to every live session on a fixed
// interval. Dispatcher drains every session inbox on a fixed interval and hands
// the events to a writer.Sink. The two are independent and may run at
// different rates.
package driver
