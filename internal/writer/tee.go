package writer

import (
	"context"
	"errors"
)

// Tee writes every batch to each of its sinks in order. A failing sink does
// not stop the others.
type Tee []Sink

// Write implements Sink.
func (t Tee) Write(ctx context.Context, records []Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
