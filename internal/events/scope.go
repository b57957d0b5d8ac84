package events

import (
	"fmt"

	"github.com/google/uuid"
)

type ScopeKind string

const (
	ScopeGlobal       ScopeKind = "global"
	ScopeConversation ScopeKind = "conversation"
	ScopeMessage      ScopeKind = "message"
)

// Scope selects which events a subscription receives.
//
//   - global: events bound to no conversation (presence)
//   - conversation: every event of one conversation
//   - message: the message itself, its reactions, its attachments and its replies
type Scope struct {
	Kind ScopeKind
	ID   uuid.UUID
}

func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

func ConversationScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeConversation, ID: id}
}

func MessageScope(id uuid.UUID) Scope {
	return Scope{Kind: ScopeMessage, ID: id}
}

// ParseScope builds a scope from its wire form.
func ParseScope(kind string, id string) (Scope, error) {
	switch ScopeKind(kind) {
	case ScopeGlobal:
		return GlobalScope(), nil
	case ScopeConversation, ScopeMessage:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Scope{}, fmt.Errorf("invalid scope id %q: %w", id, err)
		}
		return Scope{Kind: ScopeKind(kind), ID: parsed}, nil
	default:
		return Scope{}, fmt.Errorf("unknown scope %q", kind)
	}
}

func (s Scope) Matches(ev ChangeEvent) bool {
	switch s.Kind {
	case ScopeGlobal:
		return ev.ConversationID == uuid.Nil
	case ScopeConversation:
		return ev.ConversationID == s.ID
	case ScopeMessage:
		return ev.MessageID == s.ID || ev.ThreadID == s.ID
	}
	return false
}

func (s Scope) String() string {
	if s.Kind == ScopeGlobal {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.ID.String()
}
