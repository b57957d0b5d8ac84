package memory

import (
	"context"
	"fmt"
	"time"

	"parley/internal/domain/outbox"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

type outboxRepository struct {
	store *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *outbox.OutboxEvent) error {
	defer r.store.lock()()
	d := r.store.data
	if event.Status == "" {
		event.Status = outbox.StatusPending
	}
	d.outboxSeq++
	event.Seq = d.outboxSeq
	event.UpdatedAt = event.CreatedAt
	d.outbox = append(d.outbox, *event)
	return nil
}

func (r *outboxRepository) GetPending(ctx context.Context, limit, maxRetries int) ([]outbox.OutboxEvent, error) {
	defer r.store.lock()()
	var out []outbox.OutboxEvent
	for _, e := range r.store.data.outbox {
		if e.Status == outbox.StatusPending && e.RetryCount < maxRetries {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *outboxRepository) update(id uuid.UUID, fn func(*outbox.OutboxEvent)) error {
	defer r.store.lock()()
	for i := range r.store.data.outbox {
		if r.store.data.outbox[i].ID == id {
			fn(&r.store.data.outbox[i])
			r.store.data.outbox[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("outbox event %s: %w", id, parley_errors.ErrNotFound)
}

func (r *outboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *outbox.OutboxEvent) {
		now := time.Now()
		e.Status = outbox.StatusCompleted
		e.ProcessedAt = &now
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.update(id, func(e *outbox.OutboxEvent) {
		e.Status = outbox.StatusFailed
		e.Error = errorMsg
	})
}

func (r *outboxRepository) IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.update(id, func(e *outbox.OutboxEvent) {
		e.RetryCount++
		e.Error = errorMsg
	})
}
