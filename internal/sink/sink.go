// Package sink persists accepted records.
package sink

import (
	"context"
	"errors"

	"github.com/PratikDhanave/group-message-collector/internal/models"
)

// Sink receives every accepted record once, in arrival order.
type Sink interface {
	Write(ctx context.Context, rec models.Record) error
}

// Multi writes to every sink and joins their errors. One failing sink does
// not stop the others.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rec models.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
