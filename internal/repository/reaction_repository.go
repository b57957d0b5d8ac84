package repository

import (
	"context"
	"errors"

	"parley/internal/domain/message"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresReactionRepository struct {
	db DBTX
}

func NewReactionRepository(db DBTX) ReactionRepository {
	return &PostgresReactionRepository{db: db}
}

func scanReaction(row pgx.Row) (message.Reaction, error) {
	var rr message.Reaction
	err := row.Scan(&rr.ID, &rr.MessageID, &rr.UserID, &rr.Emoji, &rr.CreatedAt)
	return rr, err
}

func (r *PostgresReactionRepository) Toggle(ctx context.Context, in message.Reaction) (message.Reaction, bool, error) {
	removed, err := scanReaction(r.db.QueryRow(ctx, `
        DELETE FROM message_reactions
        WHERE message_id = $1 AND user_id = $2 AND emoji = $3
        RETURNING id, message_id, user_id, emoji, created_at
    `, in.MessageID, in.UserID, in.Emoji))
	if err == nil {
		return removed, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return message.Reaction{}, false, mapError("remove reaction", err)
	}

	added, err := scanReaction(r.db.QueryRow(ctx, `
        INSERT INTO message_reactions (id, message_id, user_id, emoji, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (message_id, user_id, emoji) DO NOTHING
        RETURNING id, message_id, user_id, emoji, created_at
    `, in.ID, in.MessageID, in.UserID, in.Emoji, in.CreatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		// A concurrent toggle inserted the same row first; report the row that won.
		existing, getErr := scanReaction(r.db.QueryRow(ctx, `
            SELECT id, message_id, user_id, emoji, created_at
            FROM message_reactions
            WHERE message_id = $1 AND user_id = $2 AND emoji = $3
        `, in.MessageID, in.UserID, in.Emoji))
		if getErr != nil {
			return message.Reaction{}, false, mapError("get reaction", getErr)
		}
		return existing, true, nil
	}
	if err != nil {
		return message.Reaction{}, false, mapError("add reaction", err)
	}
	return added, true, nil
}

func (r *PostgresReactionRepository) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, message_id, user_id, emoji, created_at
        FROM message_reactions
        WHERE message_id = $1
        ORDER BY created_at ASC, id ASC
    `, messageID)
	if err != nil {
		return nil, mapError("list reactions", err)
	}
	reactions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Reaction, error) {
		return scanReaction(row)
	})
	if err != nil {
		return nil, mapError("scan reactions", err)
	}
	return reactions, nil
}
