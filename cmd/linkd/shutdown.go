package main

import (
	"context"
	"log/slog"
)

type stopper interface {
	Stop(ctx context.Context) error
}

type stopStep struct {
	name string
	c    stopper
}

// stopAll stops each component in order. A failed step is logged and the
// remaining steps still run. Returns the number of failed steps.
func stopAll(ctx context.Context, logger *slog.Logger, steps []stopStep) int {
	failed := 0
	for _, st := range steps {
		if err := st.c.Stop(ctx); err != nil {
			failed++
			logger.Warn(st.name+" stop incomplete", "err", err)
		}
	}
	return failed
}
