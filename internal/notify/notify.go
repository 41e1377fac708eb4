package notify

import (
	"context"

	"go.uber.org/multierr"
)

// Notifier delivers an alert message to one channel. Delivery is best
// effort: callers log failures and never retry or escalate them.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Multi fans a message out to every channel. A failing channel never
// blocks the others; the combined error names each one that failed.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, text))
	}
	return errs
}
