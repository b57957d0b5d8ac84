package websocket

import (
	"fmt"

	"parley/internal/commands"
	"parley/internal/events"
	"parley/internal/transport/httpdto"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"

	FrameAck   = "ack"
	FrameError = "error"
	FrameEvent = "event"
	FramePong  = "pong"
)

type ScopeFrame struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// InboundFrame is anything a client writes. Type is a frame type above or a
// command type from the commands package.
type InboundFrame struct {
	ID    string      `json:"id,omitempty"`
	Type  string      `json:"type"`
	Scope *ScopeFrame `json:"scope,omitempty"`

	ConversationID  uuid.UUID     `json:"conversation_id,omitempty"`
	MessageID       uuid.UUID     `json:"message_id,omitempty"`
	ParentMessageID uuid.NullUUID `json:"parent_message_id,omitempty"`
	ClientMessageID string        `json:"client_message_id,omitempty"`
	Content         string        `json:"content,omitempty"`
	Emoji           string        `json:"emoji,omitempty"`
	IsTyping        bool          `json:"is_typing,omitempty"`
}

type FrameErr struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

type OutboundFrame struct {
	ID     string           `json:"id,omitempty"`
	Type   string           `json:"type"`
	Scope  string           `json:"scope,omitempty"`
	Result interface{}      `json:"result,omitempty"`
	Error  *FrameErr        `json:"error,omitempty"`
	Event  *events.Envelope `json:"event,omitempty"`
}

func ackFrame(id string, scope string, result interface{}) OutboundFrame {
	return OutboundFrame{ID: id, Type: FrameAck, Scope: scope, Result: result}
}

func errorFrame(id string, err error) OutboundFrame {
	_, resp := httpdto.ErrorResponseFor(err)
	return OutboundFrame{
		ID:   id,
		Type: FrameError,
		Error: &FrameErr{
			Code:      resp.Code,
			Message:   resp.Error,
			Retryable: resp.Retryable,
		},
	}
}

func (f InboundFrame) scope() (events.Scope, error) {
	if f.Scope == nil {
		return events.Scope{}, fmt.Errorf("%w: scope is required", parley_errors.ErrValidation)
	}
	scope, err := events.ParseScope(f.Scope.Kind, f.Scope.ID)
	if err != nil {
		return events.Scope{}, fmt.Errorf("%w: %v", parley_errors.ErrValidation, err)
	}
	return scope, nil
}

// command builds the bus command for f. The actor is always the connection's
// user, never a value taken from the frame.
func (f InboundFrame) command(userID uuid.UUID) (commands.Command, error) {
	switch f.Type {
	case commands.TypeSendMessage:
		return commands.SendMessageCommand{
			ConversationID:  f.ConversationID,
			SenderID:        userID,
			Content:         f.Content,
			ParentMessageID: f.ParentMessageID,
			ClientMessageID: f.ClientMessageID,
		}, nil
	case commands.TypeEditMessage:
		return commands.EditMessageCommand{MessageID: f.MessageID, EditorID: userID, Content: f.Content}, nil
	case commands.TypeDeleteMessage:
		return commands.DeleteMessageCommand{MessageID: f.MessageID, RequesterID: userID}, nil
	case commands.TypeMarkRead, commands.TypeMarkDelivered:
		return commands.ReceiptCommand{Type: f.Type, ConversationID: f.ConversationID, UserID: userID}, nil
	case commands.TypeToggleReaction:
		return commands.ToggleReactionCommand{MessageID: f.MessageID, UserID: userID, Emoji: f.Emoji}, nil
	case commands.TypeSetTyping:
		return commands.SetTypingCommand{ConversationID: f.ConversationID, UserID: userID, IsTyping: f.IsTyping}, nil
	case commands.TypeHeartbeat:
		return commands.HeartbeatCommand{UserID: userID}, nil
	}
	return nil, fmt.Errorf("%w: unknown frame type %q", parley_errors.ErrValidation, f.Type)
}
