package driver

import (
	"context"

	"github.com/sourcegraph/conc"
)

// wait blocks until wg finishes or ctx expires.
func wait(ctx context.Context, wg *conc.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
