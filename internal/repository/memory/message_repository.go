package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"parley/internal/domain/message"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

type messageRepository struct {
	store *Store
}

func sortMessages(msgs []message.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
}

// view returns m with only live attachments, as the pgx store loads them.
func view(m message.Message) message.Message {
	if len(m.Attachments) == 0 {
		m.Attachments = nil
		return m
	}
	live := make([]message.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if a.DeletedAt == nil {
			live = append(live, a)
		}
	}
	if len(live) == 0 {
		live = nil
	}
	m.Attachments = live
	return m
}

func (r *messageRepository) Create(ctx context.Context, m *message.Message) error {
	defer r.store.lock()()
	d := r.store.data

	if _, exists := d.messages[m.ID]; exists {
		return fmt.Errorf("create message: %w", parley_errors.ErrConflict)
	}
	if _, ok := d.conversations[m.ConversationID]; !ok {
		return fmt.Errorf("create message: conversation %s: %w", m.ConversationID, parley_errors.ErrNotFound)
	}
	if m.ClientMessageID != "" {
		for _, existing := range d.messages {
			if existing.ConversationID == m.ConversationID && existing.ClientMessageID == m.ClientMessageID {
				return fmt.Errorf("create message: %w", parley_errors.ErrConflict)
			}
		}
	}
	if m.ParentMessageID.Valid {
		if _, ok := d.messages[m.ParentMessageID.UUID]; !ok {
			return fmt.Errorf("create message: parent %s: %w", m.ParentMessageID.UUID, parley_errors.ErrNotFound)
		}
	}

	m.UpdatedAt = m.CreatedAt
	stored := *m
	stored.Attachments = make([]message.Attachment, len(m.Attachments))
	for i, a := range m.Attachments {
		a.MessageID = m.ID
		stored.Attachments[i] = a
	}
	d.messages[m.ID] = stored
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	defer r.store.lock()()
	m, ok := r.store.data.messages[id]
	if !ok {
		return message.Message{}, fmt.Errorf("get message: %w", parley_errors.ErrNotFound)
	}
	return view(m), nil
}

func (r *messageRepository) GetByClientMessageID(ctx context.Context, conversationID uuid.UUID, clientMessageID string) (message.Message, error) {
	defer r.store.lock()()
	for _, m := range r.store.data.messages {
		if m.ConversationID == conversationID && m.ClientMessageID == clientMessageID && clientMessageID != "" {
			return view(m), nil
		}
	}
	return message.Message{}, fmt.Errorf("get message by client id: %w", parley_errors.ErrNotFound)
}

func (r *messageRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) (message.Message, error) {
	defer r.store.lock()()
	m, ok := r.store.data.messages[id]
	if !ok || m.IsDeleted() || m.HasAttachment {
		return message.Message{}, fmt.Errorf("update message: %w", parley_errors.ErrNotFound)
	}
	m.Content = &content
	m.IsEdited = true
	if at.After(m.UpdatedAt) {
		m.UpdatedAt = at
	}
	r.store.data.messages[id] = m
	return view(m), nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (message.Message, error) {
	defer r.store.lock()()
	m, ok := r.store.data.messages[id]
	if !ok || m.IsDeleted() {
		return message.Message{}, fmt.Errorf("delete message: %w", parley_errors.ErrNotFound)
	}
	m.DeletedAt = &at
	if at.After(m.UpdatedAt) {
		m.UpdatedAt = at
	}
	attachments := make([]message.Attachment, len(m.Attachments))
	for i, a := range m.Attachments {
		if a.DeletedAt == nil {
			a.DeletedAt = &at
		}
		attachments[i] = a
	}
	m.Attachments = attachments
	r.store.data.messages[id] = m

	// The returned row is loaded before the attachments were hidden.
	out := m
	out.Attachments = nil
	return out, nil
}

func (r *messageRepository) filter(keep func(message.Message) bool) []message.Message {
	var out []message.Message
	for _, m := range r.store.data.messages {
		if keep(m) {
			out = append(out, view(m))
		}
	}
	sortMessages(out)
	return out
}

func (r *messageRepository) ListTopLevel(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	defer r.store.lock()()
	return r.filter(func(m message.Message) bool {
		return m.ConversationID == conversationID && !m.IsReply() && !m.IsDeleted()
	}), nil
}

func (r *messageRepository) ListReplies(ctx context.Context, parentID uuid.UUID) ([]message.Message, error) {
	defer r.store.lock()()
	return r.filter(func(m message.Message) bool {
		return m.ParentMessageID.Valid && m.ParentMessageID.UUID == parentID && !m.IsDeleted()
	}), nil
}

func (r *messageRepository) Search(ctx context.Context, conversationID uuid.UUID, query string, limit int) ([]message.Message, error) {
	defer r.store.lock()()
	needle := strings.ToLower(query)
	out := r.filter(func(m message.Message) bool {
		return m.ConversationID == conversationID && !m.IsDeleted() &&
			strings.Contains(strings.ToLower(m.Text()), needle)
	})
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *messageRepository) mark(conversationID, userID uuid.UUID, at time.Time, apply func(*message.Message) bool) []message.Message {
	var changed []message.Message
	for id, m := range r.store.data.messages {
		if m.ConversationID != conversationID || m.SenderID == userID || m.IsDeleted() {
			continue
		}
		if !apply(&m) {
			continue
		}
		if at.After(m.UpdatedAt) {
			m.UpdatedAt = at
		}
		r.store.data.messages[id] = m
		changed = append(changed, view(m))
	}
	sortMessages(changed)
	return changed
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) ([]message.Message, error) {
	defer r.store.lock()()
	return r.mark(conversationID, readerID, at, func(m *message.Message) bool {
		if m.IsRead {
			return false
		}
		m.IsRead = true
		m.IsDelivered = true
		return true
	}), nil
}

func (r *messageRepository) MarkDelivered(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) ([]message.Message, error) {
	defer r.store.lock()()
	return r.mark(conversationID, recipientID, at, func(m *message.Message) bool {
		if m.IsDelivered {
			return false
		}
		m.IsDelivered = true
		return true
	}), nil
}

func (r *messageRepository) AdjustThreadCount(ctx context.Context, parentID uuid.UUID, delta int) (message.Message, error) {
	defer r.store.lock()()
	m, ok := r.store.data.messages[parentID]
	if !ok {
		return message.Message{}, fmt.Errorf("adjust thread count: %w", parley_errors.ErrNotFound)
	}
	m.ThreadCount += delta
	if m.ThreadCount < 0 {
		m.ThreadCount = 0
	}
	r.store.data.messages[parentID] = m
	return view(m), nil
}
