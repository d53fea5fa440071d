// Package queue provides the unbounded FIFO used for session task strands and
// event inboxes.
package queue
