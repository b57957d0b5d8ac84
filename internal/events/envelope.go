package events

import (
	"encoding/json"
	"fmt"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/domain/presence"

	"github.com/google/uuid"
)

// Envelope is the transport form of a ChangeEvent.
type Envelope struct {
	EventID        uuid.UUID       `json:"event_id"`
	Kind           Kind            `json:"kind"`
	Entity         Entity          `json:"entity"`
	ConversationID *uuid.UUID      `json:"conversation_id,omitempty"`
	MessageID      *uuid.UUID      `json:"message_id,omitempty"`
	ThreadID       *uuid.UUID      `json:"thread_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload"`
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func payloadBody(p Payload) interface{} {
	switch v := p.(type) {
	case ConversationPayload:
		return v.Conversation
	case MessagePayload:
		return v.Message
	case AttachmentPayload:
		return v.Attachment
	case ReactionPayload:
		return v.Reaction
	case TypingPayload:
		return v.Indicator
	case PresencePayload:
		return v.Status
	}
	return nil
}

func NewEnvelope(ev ChangeEvent) (Envelope, error) {
	if ev.Payload == nil {
		return Envelope{}, fmt.Errorf("event %s has no payload", ev.ID)
	}
	raw, err := json.Marshal(payloadBody(ev.Payload))
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Entity, err)
	}
	return Envelope{
		EventID:        ev.ID,
		Kind:           ev.Kind,
		Entity:         ev.Entity,
		ConversationID: optionalID(ev.ConversationID),
		MessageID:      optionalID(ev.MessageID),
		ThreadID:       optionalID(ev.ThreadID),
		OccurredAt:     ev.OccurredAt,
		Payload:        raw,
	}, nil
}

// Event decodes the payload according to the entity tag.
func (e Envelope) Event() (ChangeEvent, error) {
	if !e.Kind.Valid() {
		return ChangeEvent{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	var p Payload
	switch e.Entity {
	case EntityConversation:
		var v conversation.Conversation
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return ChangeEvent{}, err
		}
		p = ConversationPayload{Conversation: v}
	case EntityMessage:
		var v message.Message
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return ChangeEvent{}, err
		}
		p = MessagePayload{Message: v}
	case EntityAttachment:
		var v message.Attachment
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return ChangeEvent{}, err
		}
		p = AttachmentPayload{Attachment: v}
	case EntityReaction:
		var v message.Reaction
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return ChangeEvent{}, err
		}
		p = ReactionPayload{Reaction: v}
	case EntityTypingIndicator:
		var v presence.TypingIndicator
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return ChangeEvent{}, err
		}
		p = TypingPayload{Indicator: v}
	case EntityOnlineStatus:
		var v presence.OnlineStatus
		if err := json.Unmarshal(e.Payload, &v); err != nil {
			return ChangeEvent{}, err
		}
		p = PresencePayload{Status: v}
	default:
		return ChangeEvent{}, fmt.Errorf("unknown entity %q", e.Entity)
	}

	return ChangeEvent{
		ID:             e.EventID,
		Kind:           e.Kind,
		Entity:         e.Entity,
		ConversationID: derefID(e.ConversationID),
		MessageID:      derefID(e.MessageID),
		ThreadID:       derefID(e.ThreadID),
		OccurredAt:     e.OccurredAt,
		Payload:        p,
	}, nil
}

func Marshal(ev ChangeEvent) ([]byte, error) {
	env, err := NewEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func Unmarshal(data []byte) (ChangeEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Event()
}
