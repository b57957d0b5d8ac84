package events

import (
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/domain/presence"

	"github.com/google/uuid"
)

// ChangeEvent is one committed mutation. ConversationID is uuid.Nil for
// events that belong to no conversation (presence). MessageID is the message
// the entity belongs to and ThreadID the parent of a reply.
type ChangeEvent struct {
	ID             uuid.UUID
	Kind           Kind
	Entity         Entity
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	ThreadID       uuid.UUID
	OccurredAt     time.Time
	Payload        Payload
}

// Payload is the tagged union of records an event can carry.
type Payload interface {
	Entity() Entity
	Key() string
}

type ConversationPayload struct {
	Conversation conversation.Conversation
}

type MessagePayload struct {
	Message message.Message
}

type AttachmentPayload struct {
	Attachment message.Attachment
}

type ReactionPayload struct {
	Reaction message.Reaction
}

type TypingPayload struct {
	Indicator presence.TypingIndicator
}

type PresencePayload struct {
	Status presence.OnlineStatus
}

func (ConversationPayload) Entity() Entity { return EntityConversation }
func (MessagePayload) Entity() Entity      { return EntityMessage }
func (AttachmentPayload) Entity() Entity   { return EntityAttachment }
func (ReactionPayload) Entity() Entity     { return EntityReaction }
func (TypingPayload) Entity() Entity       { return EntityTypingIndicator }
func (PresencePayload) Entity() Entity     { return EntityOnlineStatus }

func (p ConversationPayload) Key() string { return p.Conversation.ID.String() }
func (p MessagePayload) Key() string      { return p.Message.ID.String() }
func (p AttachmentPayload) Key() string   { return p.Attachment.ID.String() }

// Reaction rows are keyed by their natural key so add and remove of the same
// emoji stay ordered even though each insert gets a fresh id.
func (p ReactionPayload) Key() string {
	return p.Reaction.MessageID.String() + ":" + p.Reaction.UserID.String() + ":" + p.Reaction.Emoji
}

func (p TypingPayload) Key() string {
	return p.Indicator.ConversationID.String() + ":" + p.Indicator.UserID.String()
}

func (p PresencePayload) Key() string { return p.Status.UserID.String() }

// Key identifies the entity instance; events with equal keys are delivered in order.
func (e ChangeEvent) Key() string {
	if e.Payload == nil {
		return string(e.Entity)
	}
	return string(e.Entity) + ":" + e.Payload.Key()
}

func newEvent(kind Kind, p Payload, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.New(),
		Kind:       kind,
		Entity:     p.Entity(),
		OccurredAt: at.UTC(),
		Payload:    p,
	}
}

func NewConversationEvent(kind Kind, c conversation.Conversation, at time.Time) ChangeEvent {
	ev := newEvent(kind, ConversationPayload{Conversation: c}, at)
	ev.ConversationID = c.ID
	return ev
}

func NewMessageEvent(kind Kind, m message.Message, at time.Time) ChangeEvent {
	ev := newEvent(kind, MessagePayload{Message: m}, at)
	ev.ConversationID = m.ConversationID
	ev.MessageID = m.ID
	if m.ParentMessageID.Valid {
		ev.ThreadID = m.ParentMessageID.UUID
	}
	return ev
}

func NewAttachmentEvent(kind Kind, a message.Attachment, conversationID uuid.UUID, at time.Time) ChangeEvent {
	ev := newEvent(kind, AttachmentPayload{Attachment: a}, at)
	ev.ConversationID = conversationID
	ev.MessageID = a.MessageID
	return ev
}

func NewReactionEvent(kind Kind, r message.Reaction, conversationID uuid.UUID, at time.Time) ChangeEvent {
	ev := newEvent(kind, ReactionPayload{Reaction: r}, at)
	ev.ConversationID = conversationID
	ev.MessageID = r.MessageID
	return ev
}

func NewTypingEvent(ind presence.TypingIndicator, at time.Time) ChangeEvent {
	ev := newEvent(KindUpdate, TypingPayload{Indicator: ind}, at)
	ev.ConversationID = ind.ConversationID
	return ev
}

func NewPresenceEvent(status presence.OnlineStatus, at time.Time) ChangeEvent {
	return newEvent(KindUpdate, PresencePayload{Status: status}, at)
}
