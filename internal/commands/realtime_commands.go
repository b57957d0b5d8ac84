package commands

import "github.com/google/uuid"

const (
	TypeToggleReaction = "reaction.toggle"
	TypeSetTyping      = "typing.set"
	TypeHeartbeat      = "presence.heartbeat"
)

type ToggleReactionCommand struct {
	MessageID uuid.UUID `validate:"required"`
	UserID    uuid.UUID `validate:"required"`
	Emoji     string    `validate:"required,max=64"`
}

func (ToggleReactionCommand) CommandType() string { return TypeToggleReaction }

func (c ToggleReactionCommand) Validate() error    { return validateStruct(c) }
func (c ToggleReactionCommand) ActorID() uuid.UUID { return c.UserID }

type SetTypingCommand struct {
	ConversationID uuid.UUID `validate:"required"`
	UserID         uuid.UUID `validate:"required"`
	IsTyping       bool
}

func (SetTypingCommand) CommandType() string { return TypeSetTyping }

func (c SetTypingCommand) Validate() error    { return validateStruct(c) }
func (c SetTypingCommand) ActorID() uuid.UUID { return c.UserID }

type HeartbeatCommand struct {
	UserID uuid.UUID `validate:"required"`
}

func (HeartbeatCommand) CommandType() string { return TypeHeartbeat }

func (c HeartbeatCommand) Validate() error    { return validateStruct(c) }
func (c HeartbeatCommand) ActorID() uuid.UUID { return c.UserID }
