package repository

import (
	"context"
	"time"

	"parley/internal/domain/conversation"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts the conversation and its participants. Callers run it in a
// transaction so a failed participant insert leaves nothing behind.
func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO conversations (id, direct_key, created_at, updated_at)
        VALUES ($1, $2, $3, $3)
        RETURNING created_at, updated_at
    `, c.ID, nullableText(c.DirectKey), c.CreatedAt).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapError("create conversation", err)
	}

	if len(c.Participants) == 0 {
		return nil
	}
	args := make([]any, 0, len(c.Participants)*3)
	values := ""
	for i, p := range c.Participants {
		if i > 0 {
			values += ","
		}
		values += "(" + buildPlaceholders(i*3+1, 3) + ")"
		args = append(args, c.ID, p.UserID, p.JoinedAt)
	}
	if _, err := r.db.Exec(ctx, `
        INSERT INTO participants (conversation_id, user_id, joined_at)
        VALUES `+values, args...); err != nil {
		return mapError("add participants", err)
	}
	return nil
}

func scanConversation(row pgx.Row) (conversation.Conversation, error) {
	var c conversation.Conversation
	var directKey *string
	if err := row.Scan(&c.ID, &directKey, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return conversation.Conversation{}, err
	}
	if directKey != nil {
		c.DirectKey = *directKey
	}
	return c, nil
}

func (r *PostgresConversationRepository) loadParticipants(ctx context.Context, c *conversation.Conversation) error {
	rows, err := r.db.Query(ctx, `
        SELECT conversation_id, user_id, joined_at
        FROM participants
        WHERE conversation_id = $1
        ORDER BY joined_at ASC, user_id ASC
    `, c.ID)
	if err != nil {
		return mapError("list participants", err)
	}
	participants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (conversation.Participant, error) {
		var p conversation.Participant
		err := row.Scan(&p.ConversationID, &p.UserID, &p.JoinedAt)
		return p, err
	})
	if err != nil {
		return mapError("scan participants", err)
	}
	c.Participants = participants
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
        SELECT id, direct_key, created_at, updated_at, deleted_at
        FROM conversations
        WHERE id = $1
    `, id))
	if err != nil {
		return conversation.Conversation{}, mapError("get conversation", err)
	}
	if err := r.loadParticipants(ctx, &c); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
        SELECT id, direct_key, created_at, updated_at, deleted_at
        FROM conversations
        WHERE direct_key = $1 AND deleted_at IS NULL
    `, key))
	if err != nil {
		return conversation.Conversation{}, mapError("get direct conversation", err)
	}
	if err := r.loadParticipants(ctx, &c); err != nil {
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	rows, err := r.db.Query(ctx, `
        SELECT c.id, c.direct_key, c.created_at, c.updated_at, c.deleted_at,
            (SELECT COUNT(*) FROM messages m
             WHERE m.conversation_id = c.id
               AND m.sender_id <> $1
               AND m.is_read = false
               AND m.deleted_at IS NULL) AS unread
        FROM conversations c
        JOIN participants p ON p.conversation_id = c.id
        WHERE p.user_id = $1 AND c.deleted_at IS NULL
        ORDER BY c.updated_at DESC, c.id ASC
    `, userID)
	if err != nil {
		return nil, mapError("list conversations", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (conversation.Summary, error) {
		var s conversation.Summary
		var directKey *string
		err := row.Scan(&s.ID, &directKey, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt, &s.UnreadCount)
		if directKey != nil {
			s.DirectKey = *directKey
		}
		return s, err
	})
	if err != nil {
		return nil, mapError("scan conversations", err)
	}
	for i := range summaries {
		if err := r.loadParticipants(ctx, &summaries[i].Conversation); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM participants p
            JOIN conversations c ON c.id = p.conversation_id
            WHERE p.conversation_id = $1 AND p.user_id = $2 AND c.deleted_at IS NULL
        )
    `, conversationID, userID).Scan(&ok)
	if err != nil {
		return false, mapError("check participant", err)
	}
	return ok, nil
}

func (r *PostgresConversationRepository) ListParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
        SELECT user_id FROM participants
        WHERE conversation_id = $1
        ORDER BY joined_at ASC, user_id ASC
    `, conversationID)
	if err != nil {
		return nil, mapError("list participant ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, mapError("scan participant ids", err)
	}
	return ids, nil
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE conversations
        SET updated_at = GREATEST(updated_at, $2)
        WHERE id = $1
    `, conversationID, at)
	if err != nil {
		return mapError("touch conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("touch conversation", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresConversationRepository) SoftDelete(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE conversations
        SET deleted_at = $2, updated_at = GREATEST(updated_at, $2)
        WHERE id = $1 AND deleted_at IS NULL
    `, conversationID, at)
	if err != nil {
		return mapError("delete conversation", err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("delete conversation", pgx.ErrNoRows)
	}
	return nil
}
