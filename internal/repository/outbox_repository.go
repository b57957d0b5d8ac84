package repository

import (
	"context"
	"time"

	"parley/internal/domain/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type outboxRepository struct {
	db DBTX
}

func NewOutboxRepository(db DBTX) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Create(ctx context.Context, event *outbox.OutboxEvent) error {
	if event.Status == "" {
		event.Status = outbox.StatusPending
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, error, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        RETURNING seq
    `,
		event.ID,
		event.EventType,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.Error,
		event.CreatedAt,
	).Scan(&event.Seq)
	return mapError("create outbox event", err)
}

func (r *outboxRepository) GetPending(ctx context.Context, limit, maxRetries int) ([]outbox.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT seq, id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, error, created_at, updated_at, processed_at
        FROM outbox_events
        WHERE status = $1 AND retry_count < $2
        ORDER BY seq ASC
        LIMIT $3
    `, outbox.StatusPending, maxRetries, limit)
	if err != nil {
		return nil, mapError("get pending outbox events", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.OutboxEvent, error) {
		var event outbox.OutboxEvent
		err := row.Scan(
			&event.Seq,
			&event.ID,
			&event.EventType,
			&event.AggregateType,
			&event.AggregateID,
			&event.Payload,
			&event.Status,
			&event.RetryCount,
			&event.Error,
			&event.CreatedAt,
			&event.UpdatedAt,
			&event.ProcessedAt,
		)
		return event, err
	})
	if err != nil {
		return nil, mapError("scan outbox events", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, processed_at = $2, updated_at = $2
        WHERE id = $3
    `, outbox.StatusCompleted, now, id)
	return mapError("mark outbox completed", err)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = $1, error = $2, updated_at = $3
        WHERE id = $4
    `, outbox.StatusFailed, errorMsg, time.Now(), id)
	return mapError("mark outbox failed", err)
}

func (r *outboxRepository) IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET retry_count = retry_count + 1, error = $2, updated_at = $3
        WHERE id = $1
    `, id, errorMsg, time.Now())
	return mapError("increment outbox retry", err)
}
