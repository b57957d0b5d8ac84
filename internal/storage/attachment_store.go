package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"parley/internal/domain/message"
	parley_errors "parley/pkg/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Upload is one file handed to the attachment store before its message exists.
type Upload struct {
	FileName     string
	DeclaredType string
	Data         []byte
}

// StoredObject is what the store reports back for a successful upload.
type StoredObject struct {
	Key          string
	FileURL      string
	ThumbnailURL *string
	FileType     string
	FileSize     int64
}

// AttachmentStore persists attachment blobs. Failures wrap
// parley_errors.ErrAttachmentUploadFailed.
type AttachmentStore interface {
	Store(ctx context.Context, upload Upload) (StoredObject, error)
}

// DetectType prefers the sniffed MIME type over the declared one, falling
// back to the declared type when sniffing only finds a generic type.
func DetectType(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	sniffed := detected.String()
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if (sniffed == "application/octet-stream" || sniffed == "text/plain") && declared != "" {
		return declared
	}
	return sniffed
}

// ObjectKey builds the bucket key for an upload.
func ObjectKey(fileName string) string {
	ext := path.Ext(fileName)
	return path.Join("attachments", uuid.NewString()+strings.ToLower(ext))
}

// Validate rejects empty or oversized uploads.
func (u Upload) Validate(maxBytes int64) error {
	if strings.TrimSpace(u.FileName) == "" {
		return fmt.Errorf("%w: attachment file name is required", parley_errors.ErrValidation)
	}
	if len(u.Data) == 0 {
		return fmt.Errorf("%w: attachment %q is empty", parley_errors.ErrValidation, u.FileName)
	}
	if maxBytes > 0 && int64(len(u.Data)) > maxBytes {
		return fmt.Errorf("%w: attachment %q exceeds %d bytes", parley_errors.ErrValidation, u.FileName, maxBytes)
	}
	return nil
}

// ToAttachment converts a stored object into the attachment row for messageID.
func (o StoredObject) ToAttachment(fileName string) message.Attachment {
	return message.Attachment{
		ID:           uuid.New(),
		FileName:     fileName,
		FileSize:     o.FileSize,
		FileType:     o.FileType,
		FileURL:      o.FileURL,
		ThumbnailURL: o.ThumbnailURL,
	}
}

// thumbnailURL derives the thumbnail location for image uploads. Without a
// configured thumbnail base it falls under <fileBase>/thumbnails.
func thumbnailURL(thumbBase, fileBase, key, contentType string) *string {
	if !message.IsImageType(contentType) {
		return nil
	}
	base := strings.TrimRight(thumbBase, "/")
	if base == "" {
		base = strings.TrimRight(fileBase, "/") + "/thumbnails"
	}
	u := base + "/" + key
	return &u
}

func uploadFailed(name string, err error) error {
	return fmt.Errorf("store %q: %w: %v", name, parley_errors.ErrAttachmentUploadFailed, err)
}
