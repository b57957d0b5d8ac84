package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parley/internal/domain/presence"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

type typingKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

// TypingStore keeps typing indicators in process memory.
type TypingStore struct {
	mu   sync.RWMutex
	rows map[typingKey]presence.TypingIndicator
}

func NewTypingStore() *TypingStore {
	return &TypingStore{rows: make(map[typingKey]presence.TypingIndicator)}
}

func (s *TypingStore) Upsert(ctx context.Context, ind presence.TypingIndicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[typingKey{conversationID: ind.ConversationID, userID: ind.UserID}] = ind
	return nil
}

func (s *TypingStore) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]presence.TypingIndicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []presence.TypingIndicator
	for k, v := range s.rows {
		if k.conversationID == conversationID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

// PresenceStore keeps online status rows in process memory.
type PresenceStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]presence.OnlineStatus
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{rows: make(map[uuid.UUID]presence.OnlineStatus)}
}

func (s *PresenceStore) Upsert(ctx context.Context, status presence.OnlineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[status.UserID] = status
	return nil
}

func (s *PresenceStore) Get(ctx context.Context, userID uuid.UUID) (presence.OnlineStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.rows[userID]
	if !ok {
		return presence.OnlineStatus{}, fmt.Errorf("online status %s: %w", userID, parley_errors.ErrNotFound)
	}
	return status, nil
}

func (s *PresenceStore) ListSeenSince(ctx context.Context, since time.Time) ([]presence.OnlineStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []presence.OnlineStatus
	for _, v := range s.rows {
		if !v.LastSeen.Before(since) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}
