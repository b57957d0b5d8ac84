package repository

import (
	"context"
	"time"

	"parley/internal/domain/message"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

const messageColumns = `id, conversation_id, sender_id, client_message_id, content, created_at, updated_at,
            is_read, is_delivered, is_edited, has_attachment, parent_message_id, thread_count, deleted_at`

func scanMessage(row pgx.Row) (message.Message, error) {
	var m message.Message
	var clientID *string
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&clientID,
		&m.Content,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.IsRead,
		&m.IsDelivered,
		&m.IsEdited,
		&m.HasAttachment,
		&m.ParentMessageID,
		&m.ThreadCount,
		&m.DeletedAt,
	)
	if clientID != nil {
		m.ClientMessageID = *clientID
	}
	return m, err
}

func collectMessages(rows pgx.Rows) ([]message.Message, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Message, error) {
		return scanMessage(row)
	})
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO messages (id, conversation_id, sender_id, client_message_id, content, created_at, updated_at,
            has_attachment, parent_message_id)
        VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
        RETURNING created_at, updated_at
    `,
		m.ID,
		m.ConversationID,
		m.SenderID,
		nullableText(m.ClientMessageID),
		m.Content,
		m.CreatedAt,
		m.HasAttachment,
		m.ParentMessageID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return mapError("create message", err)
	}

	if len(m.Attachments) == 0 {
		return nil
	}
	const cols = 8
	args := make([]any, 0, len(m.Attachments)*cols)
	values := ""
	for i, a := range m.Attachments {
		if i > 0 {
			values += ","
		}
		values += "(" + buildPlaceholders(i*cols+1, cols) + ")"
		args = append(args, a.ID, m.ID, a.FileName, a.FileSize, a.FileType, a.FileURL, a.ThumbnailURL, a.CreatedAt)
	}
	if _, err := r.db.Exec(ctx, `
        INSERT INTO attachments (id, message_id, file_name, file_size, file_type, file_url, thumbnail_url, created_at)
        VALUES `+values, args...); err != nil {
		return mapError("create attachments", err)
	}
	return nil
}

// loadAttachments fills Attachments for every message in one query.
func (r *PostgresMessageRepository) loadAttachments(ctx context.Context, msgs []message.Message) error {
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		if m.HasAttachment {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.db.Query(ctx, `
        SELECT id, message_id, file_name, file_size, file_type, file_url, thumbnail_url, created_at, deleted_at
        FROM attachments
        WHERE message_id = ANY($1) AND deleted_at IS NULL
        ORDER BY created_at ASC, id ASC
    `, ids)
	if err != nil {
		return mapError("list attachments", err)
	}
	attachments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Attachment, error) {
		var a message.Attachment
		err := row.Scan(&a.ID, &a.MessageID, &a.FileName, &a.FileSize, &a.FileType, &a.FileURL, &a.ThumbnailURL, &a.CreatedAt, &a.DeletedAt)
		return a, err
	})
	if err != nil {
		return mapError("scan attachments", err)
	}

	byMessage := make(map[uuid.UUID][]message.Attachment, len(ids))
	for _, a := range attachments {
		byMessage[a.MessageID] = append(byMessage[a.MessageID], a)
	}
	for i := range msgs {
		msgs[i].Attachments = byMessage[msgs[i].ID]
	}
	return nil
}

func (r *PostgresMessageRepository) getOne(ctx context.Context, op, where string, args ...any) (message.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE `+where, args...))
	if err != nil {
		return message.Message{}, mapError(op, err)
	}
	out := []message.Message{m}
	if err := r.loadAttachments(ctx, out); err != nil {
		return message.Message{}, err
	}
	return out[0], nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	return r.getOne(ctx, "get message", "id = $1", id)
}

func (r *PostgresMessageRepository) GetByClientMessageID(ctx context.Context, conversationID uuid.UUID, clientMessageID string) (message.Message, error) {
	return r.getOne(ctx, "get message by client id", "conversation_id = $1 AND client_message_id = $2", conversationID, clientMessageID)
}

func (r *PostgresMessageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) (message.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `
        UPDATE messages
        SET content = $2, is_edited = true, updated_at = GREATEST(updated_at, $3)
        WHERE id = $1 AND deleted_at IS NULL AND has_attachment = false
        RETURNING `+messageColumns, id, content, at))
	if err != nil {
		return message.Message{}, mapError("update message", err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (message.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `
        UPDATE messages
        SET deleted_at = $2, updated_at = GREATEST(updated_at, $2)
        WHERE id = $1 AND deleted_at IS NULL
        RETURNING `+messageColumns, id, at))
	if err != nil {
		return message.Message{}, mapError("delete message", err)
	}
	if _, err := r.db.Exec(ctx, `
        UPDATE attachments SET deleted_at = $2
        WHERE message_id = $1 AND deleted_at IS NULL
    `, id, at); err != nil {
		return message.Message{}, mapError("delete attachments", err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) list(ctx context.Context, op, query string, args ...any) ([]message.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, mapError(op, err)
	}
	if err := r.loadAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *PostgresMessageRepository) ListTopLevel(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	return r.list(ctx, "list messages", `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1 AND parent_message_id IS NULL AND deleted_at IS NULL
        ORDER BY created_at ASC, id ASC
    `, conversationID)
}

func (r *PostgresMessageRepository) ListReplies(ctx context.Context, parentID uuid.UUID) ([]message.Message, error) {
	return r.list(ctx, "list replies", `
        SELECT `+messageColumns+`
        FROM messages
        WHERE parent_message_id = $1 AND deleted_at IS NULL
        ORDER BY created_at ASC, id ASC
    `, parentID)
}

func (r *PostgresMessageRepository) Search(ctx context.Context, conversationID uuid.UUID, query string, limit int) ([]message.Message, error) {
	return r.list(ctx, "search messages", `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1 AND deleted_at IS NULL AND content ILIKE '%' || $2 || '%' ESCAPE '\'
        ORDER BY created_at DESC, id DESC
        LIMIT $3
    `, conversationID, escapeLike(query), limit)
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) ([]message.Message, error) {
	return r.list(ctx, "mark read", `
        UPDATE messages
        SET is_read = true, is_delivered = true, updated_at = GREATEST(updated_at, $3)
        WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = false AND deleted_at IS NULL
        RETURNING `+messageColumns, conversationID, readerID, at)
}

func (r *PostgresMessageRepository) MarkDelivered(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) ([]message.Message, error) {
	return r.list(ctx, "mark delivered", `
        UPDATE messages
        SET is_delivered = true, updated_at = GREATEST(updated_at, $3)
        WHERE conversation_id = $1 AND sender_id <> $2 AND is_delivered = false AND deleted_at IS NULL
        RETURNING `+messageColumns, conversationID, recipientID, at)
}

func (r *PostgresMessageRepository) AdjustThreadCount(ctx context.Context, parentID uuid.UUID, delta int) (message.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `
        UPDATE messages
        SET thread_count = GREATEST(thread_count + $2, 0)
        WHERE id = $1
        RETURNING `+messageColumns, parentID, delta))
	if err != nil {
		return message.Message{}, mapError("adjust thread count", err)
	}
	return m, nil
}
