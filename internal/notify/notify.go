// Package notify delivers run reports to people.
package notify

import (
	"context"
	"errors"

	"shopwatch/internal/pipeline"
)

// Sender delivers a report.
type Sender interface {
	Send(ctx context.Context, report *pipeline.Report) error
}

// Multi sends to every sender and joins their errors.
type Multi []Sender

// Send calls every sender even when an earlier one fails.
func (m Multi) Send(ctx context.Context, report *pipeline.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
