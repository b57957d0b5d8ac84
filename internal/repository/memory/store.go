// Package memory provides in-process implementations of the repository
// interfaces. Transactions serialize on one mutex and roll back by restoring
// a snapshot of the tables.
package memory

import (
	"context"
	"sync"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/domain/outbox"
	"parley/internal/domain/user"
	"parley/internal/repository"

	"github.com/google/uuid"
)

type reactionKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
	emoji     string
}

type tables struct {
	conversations map[uuid.UUID]conversation.Conversation
	participants  map[uuid.UUID][]conversation.Participant
	messages      map[uuid.UUID]message.Message
	reactions     map[reactionKey]message.Reaction
	profiles      map[uuid.UUID]user.Profile
	outbox        []outbox.OutboxEvent
	outboxSeq     int64
}

func newTables() *tables {
	return &tables{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		participants:  make(map[uuid.UUID][]conversation.Participant),
		messages:      make(map[uuid.UUID]message.Message),
		reactions:     make(map[reactionKey]message.Reaction),
		profiles:      make(map[uuid.UUID]user.Profile),
	}
}

// clone copies every table. Stored values are treated as immutable, so
// copying the maps is enough.
func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.conversations {
		c.conversations[k] = v
	}
	for k, v := range t.participants {
		c.participants[k] = append([]conversation.Participant(nil), v...)
	}
	for k, v := range t.messages {
		c.messages[k] = v
	}
	for k, v := range t.reactions {
		c.reactions[k] = v
	}
	for k, v := range t.profiles {
		c.profiles[k] = v
	}
	c.outbox = append([]outbox.OutboxEvent(nil), t.outbox...)
	c.outboxSeq = t.outboxSeq
	return c
}

type Store struct {
	mu   *sync.Mutex
	data *tables
	inTx bool
}

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, data: newTables()}
}

// lock acquires the store mutex unless the caller already runs inside WithTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Conversations() repository.ConversationRepository {
	return &conversationRepository{store: s}
}

func (s *Store) Messages() repository.MessageRepository {
	return &messageRepository{store: s}
}

func (s *Store) Reactions() repository.ReactionRepository {
	return &reactionRepository{store: s}
}

func (s *Store) Profiles() repository.ProfileRepository {
	return &profileRepository{store: s}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{store: s}
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

// PutProfile seeds the identity directory.
func (s *Store) PutProfile(p user.Profile) {
	defer s.lock()()
	s.data.profiles[p.ID] = p
}

// OutboxEvents returns a copy of every outbox row, for inspection in tests.
func (s *Store) OutboxEvents() []outbox.OutboxEvent {
	defer s.lock()()
	return append([]outbox.OutboxEvent(nil), s.data.outbox...)
}
