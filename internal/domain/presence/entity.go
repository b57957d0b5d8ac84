package presence

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTypingTimeout     = 5 * time.Second
	DefaultPresenceWindow    = 5 * time.Minute
	DefaultHeartbeatInterval = 60 * time.Second
)

// TypingIndicator is keyed by (UserID, ConversationID).
type TypingIndicator struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Active reports whether the indicator is set and younger than timeout.
func (t TypingIndicator) Active(now time.Time, timeout time.Duration) bool {
	return t.IsTyping && now.Sub(t.LastUpdated) < timeout
}

type OnlineStatus struct {
	UserID   uuid.UUID `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
	IsOnline bool      `json:"is_online"`
}

// Online applies the liveness window to the stored flag.
func (s OnlineStatus) Online(now time.Time, window time.Duration) bool {
	return s.IsOnline && now.Sub(s.LastSeen) <= window
}

func (TypingIndicator) TableName() string {
	return "typing_indicators"
}

func (OnlineStatus) TableName() string {
	return "online_status"
}
