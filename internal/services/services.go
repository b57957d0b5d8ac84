package services

import (
	"context"
	"time"

	"parley/internal/events"
	"parley/internal/outbox"
	"parley/internal/repository"
)

// Notifier is told after a transaction committed outbox rows. The outbox
// processor implements it.
type Notifier interface {
	Wake()
}

type Clock func() time.Time

type nopNotifier struct{}

func (nopNotifier) Wake() {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// record writes events to the outbox of tx in order.
func record(ctx context.Context, tx repository.Store, evs ...events.ChangeEvent) error {
	for _, ev := range evs {
		if err := outbox.Record(ctx, tx.Outbox(), ev); err != nil {
			return err
		}
	}
	return nil
}
