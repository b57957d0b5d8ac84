package parley_errors

import (
	"errors"
	"time"
)

// Terminal errors are surfaced to the caller and never retried.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)

// Retryable errors may be retried by the caller with backoff.
var (
	ErrAttachmentUploadFailed = errors.New("attachment upload failed")
	ErrTransientStore         = errors.New("transient store error")
)

var (
	ErrRateLimited = errors.New("rate limited")
	ErrClosed      = errors.New("closed")
)

// IsRetryable reports whether err may succeed when retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore) || errors.Is(err, ErrAttachmentUploadFailed)
}

// IsTerminal reports whether err belongs to the terminal taxonomy.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound)
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
