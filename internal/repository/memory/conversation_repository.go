package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"parley/internal/domain/conversation"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

type conversationRepository struct {
	store *Store
}

func (r *conversationRepository) withParticipants(c conversation.Conversation) conversation.Conversation {
	c.Participants = append([]conversation.Participant(nil), r.store.data.participants[c.ID]...)
	return c
}

func (r *conversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	defer r.store.lock()()
	d := r.store.data

	if _, exists := d.conversations[c.ID]; exists {
		return fmt.Errorf("create conversation: %w", parley_errors.ErrConflict)
	}
	if c.DirectKey != "" {
		for _, existing := range d.conversations {
			if existing.DirectKey == c.DirectKey && !existing.IsDeleted() {
				return fmt.Errorf("create conversation: %w", parley_errors.ErrConflict)
			}
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(c.Participants))
	participants := make([]conversation.Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if _, dup := seen[p.UserID]; dup {
			return fmt.Errorf("add participants: %w", parley_errors.ErrConflict)
		}
		seen[p.UserID] = struct{}{}
		p.ConversationID = c.ID
		participants = append(participants, p)
	}

	c.UpdatedAt = c.CreatedAt
	stored := *c
	stored.Participants = nil
	d.conversations[c.ID] = stored
	d.participants[c.ID] = participants
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	defer r.store.lock()()
	c, ok := r.store.data.conversations[id]
	if !ok {
		return conversation.Conversation{}, fmt.Errorf("get conversation: %w", parley_errors.ErrNotFound)
	}
	return r.withParticipants(c), nil
}

func (r *conversationRepository) GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	defer r.store.lock()()
	for _, c := range r.store.data.conversations {
		if c.DirectKey == key && !c.IsDeleted() {
			return r.withParticipants(c), nil
		}
	}
	return conversation.Conversation{}, fmt.Errorf("get direct conversation: %w", parley_errors.ErrNotFound)
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	defer r.store.lock()()
	d := r.store.data

	var out []conversation.Summary
	for id, c := range d.conversations {
		if c.IsDeleted() || !r.isParticipant(id, userID) {
			continue
		}
		unread := 0
		for _, m := range d.messages {
			if m.ConversationID == id && m.SenderID != userID && !m.IsRead && !m.IsDeleted() {
				unread++
			}
		}
		out = append(out, conversation.Summary{Conversation: r.withParticipants(c), UnreadCount: unread})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *conversationRepository) isParticipant(conversationID, userID uuid.UUID) bool {
	c := conversation.Conversation{Participants: r.store.data.participants[conversationID]}
	return c.HasParticipant(userID)
}

func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	defer r.store.lock()()
	c, ok := r.store.data.conversations[conversationID]
	if !ok || c.IsDeleted() {
		return false, nil
	}
	return r.isParticipant(conversationID, userID), nil
}

func (r *conversationRepository) ListParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	defer r.store.lock()()
	ps := r.store.data.participants[conversationID]
	ids := make([]uuid.UUID, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (r *conversationRepository) Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	defer r.store.lock()()
	c, ok := r.store.data.conversations[conversationID]
	if !ok {
		return fmt.Errorf("touch conversation: %w", parley_errors.ErrNotFound)
	}
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
		r.store.data.conversations[conversationID] = c
	}
	return nil
}

func (r *conversationRepository) SoftDelete(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	defer r.store.lock()()
	c, ok := r.store.data.conversations[conversationID]
	if !ok || c.IsDeleted() {
		return fmt.Errorf("delete conversation: %w", parley_errors.ErrNotFound)
	}
	c.DeletedAt = &at
	if at.After(c.UpdatedAt) {
		c.UpdatedAt = at
	}
	r.store.data.conversations[conversationID] = c
	return nil
}
