package commands

import (
	"github.com/google/uuid"
)

const (
	TypeSendMessage   = "message.send"
	TypeEditMessage   = "message.edit"
	TypeDeleteMessage = "message.delete"
	TypeMarkRead      = "message.read"
	TypeMarkDelivered = "message.delivered"
)

type SendMessageCommand struct {
	ConversationID  uuid.UUID     `validate:"required"`
	SenderID        uuid.UUID     `validate:"required"`
	Content         string        `validate:"max=10000"`
	ParentMessageID uuid.NullUUID `validate:"-"`
	ClientMessageID string        `validate:"required,max=128"`
}

func (SendMessageCommand) CommandType() string { return TypeSendMessage }

func (c SendMessageCommand) Validate() error    { return validateStruct(c) }
func (c SendMessageCommand) ActorID() uuid.UUID { return c.SenderID }

type EditMessageCommand struct {
	MessageID uuid.UUID `validate:"required"`
	EditorID  uuid.UUID `validate:"required"`
	Content   string    `validate:"required,max=10000"`
}

func (EditMessageCommand) CommandType() string { return TypeEditMessage }

func (c EditMessageCommand) Validate() error    { return validateStruct(c) }
func (c EditMessageCommand) ActorID() uuid.UUID { return c.EditorID }

type DeleteMessageCommand struct {
	MessageID   uuid.UUID `validate:"required"`
	RequesterID uuid.UUID `validate:"required"`
}

func (DeleteMessageCommand) CommandType() string { return TypeDeleteMessage }

func (c DeleteMessageCommand) Validate() error    { return validateStruct(c) }
func (c DeleteMessageCommand) ActorID() uuid.UUID { return c.RequesterID }

// ReceiptCommand marks a conversation read or delivered for UserID.
type ReceiptCommand struct {
	Type           string    `validate:"oneof=message.read message.delivered"`
	ConversationID uuid.UUID `validate:"required"`
	UserID         uuid.UUID `validate:"required"`
}

func (c ReceiptCommand) CommandType() string { return c.Type }

func (c ReceiptCommand) Validate() error    { return validateStruct(c) }
func (c ReceiptCommand) ActorID() uuid.UUID { return c.UserID }
