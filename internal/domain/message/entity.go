package message

import (
	"strings"
	"time"

	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

// Message represents the messages table
type Message struct {
	ID              uuid.UUID     `json:"id"`
	ConversationID  uuid.UUID     `json:"conversation_id"`
	SenderID        uuid.UUID     `json:"sender_id"`
	ClientMessageID string        `json:"client_message_id,omitempty"`
	Content         *string       `json:"content"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	IsRead          bool          `json:"is_read"`
	IsDelivered     bool          `json:"is_delivered"`
	IsEdited        bool          `json:"is_edited"`
	HasAttachment   bool          `json:"has_attachment"`
	ParentMessageID uuid.NullUUID `json:"parent_message_id"`
	ThreadCount     int           `json:"thread_count"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

func (m Message) IsReply() bool {
	return m.ParentMessageID.Valid
}

func (m Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// CheckEditable enforces the edit rules: only the sender, never a deleted
// message, never a message that carries attachments.
func (m Message) CheckEditable(editorID uuid.UUID) error {
	if m.IsDeleted() {
		return parley_errors.ErrNotFound
	}
	if editorID != m.SenderID {
		return parley_errors.ErrUnauthorized
	}
	if m.HasAttachment {
		return parley_errors.ErrConflict
	}
	return nil
}

// CheckDeletable enforces that only the sender may delete a live message.
func (m Message) CheckDeletable(requesterID uuid.UUID) error {
	if m.IsDeleted() {
		return parley_errors.ErrNotFound
	}
	if requesterID != m.SenderID {
		return parley_errors.ErrUnauthorized
	}
	return nil
}

// CanParent reports whether m may hold replies in conversationID.
func (m Message) CanParent(conversationID uuid.UUID) bool {
	return !m.IsDeleted() && !m.IsReply() && m.ConversationID == conversationID
}

// NormalizeContent trims content and turns blank text into nil.
func NormalizeContent(content string) *string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (Message) TableName() string {
	return "messages"
}
