package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attachment represents attachments
type Attachment struct {
	ID           uuid.UUID  `json:"id"`
	MessageID    uuid.UUID  `json:"message_id"`
	FileName     string     `json:"file_name"`
	FileSize     int64      `json:"file_size"`
	FileType     string     `json:"file_type"`
	FileURL      string     `json:"file_url"`
	ThumbnailURL *string    `json:"thumbnail_url"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (a Attachment) IsImage() bool {
	return IsImageType(a.FileType)
}

func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func (Attachment) TableName() string {
	return "attachments"
}
