package repository

import (
	"context"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/domain/outbox"
	"parley/internal/domain/presence"
	"parley/internal/domain/user"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ListParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	// Touch moves updated_at forward to at, never backwards.
	Touch(ctx context.Context, conversationID uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, conversationID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	// Create inserts the message and its attachments.
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	GetByClientMessageID(ctx context.Context, conversationID uuid.UUID, clientMessageID string) (message.Message, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, at time.Time) (message.Message, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (message.Message, error)

	ListTopLevel(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	ListReplies(ctx context.Context, parentID uuid.UUID) ([]message.Message, error)
	Search(ctx context.Context, conversationID uuid.UUID, query string, limit int) ([]message.Message, error)

	// MarkRead and MarkDelivered return only the rows they changed.
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) ([]message.Message, error)
	MarkDelivered(ctx context.Context, conversationID, recipientID uuid.UUID, at time.Time) ([]message.Message, error)

	// AdjustThreadCount adds delta to thread_count atomically, flooring at 0.
	AdjustThreadCount(ctx context.Context, parentID uuid.UUID, delta int) (message.Message, error)
}

type ReactionRepository interface {
	// Toggle removes the (message, user, emoji) row if present and inserts it
	// otherwise. added reports which happened.
	Toggle(ctx context.Context, r message.Reaction) (result message.Reaction, added bool, err error)
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)
}

type ProfileRepository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.Profile, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *outbox.OutboxEvent) error
	GetPending(ctx context.Context, limit, maxRetries int) ([]outbox.OutboxEvent, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error
	IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error
}

type TypingRepository interface {
	Upsert(ctx context.Context, ind presence.TypingIndicator) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]presence.TypingIndicator, error)
}

type PresenceRepository interface {
	Upsert(ctx context.Context, status presence.OnlineStatus) error
	Get(ctx context.Context, userID uuid.UUID) (presence.OnlineStatus, error)
	// ListSeenSince returns statuses whose last_seen is not before since.
	ListSeenSince(ctx context.Context, since time.Time) ([]presence.OnlineStatus, error)
}

// Store groups the durable repositories that take part in one transaction.
type Store interface {
	Conversations() ConversationRepository
	Messages() MessageRepository
	Reactions() ReactionRepository
	Profiles() ProfileRepository
	Outbox() OutboxRepository

	// WithTx runs fn against a transactional view of the store. fn's error
	// rolls everything back. Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}
