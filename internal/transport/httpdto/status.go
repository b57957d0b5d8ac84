package httpdto

import (
	"errors"
	"net/http"

	parley_errors "parley/pkg/errors"
)

// StatusFor maps the error taxonomy to an HTTP status and an error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, parley_errors.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, parley_errors.ErrUnauthorized):
		return http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, parley_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, parley_errors.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, parley_errors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, parley_errors.ErrAttachmentUploadFailed):
		return http.StatusBadGateway, "ATTACHMENT_UPLOAD_FAILED"
	case errors.Is(err, parley_errors.ErrTransientStore):
		return http.StatusServiceUnavailable, "TRANSIENT_STORE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// ErrorResponseFor builds the status and body for err. Internal errors never
// leak their message.
func ErrorResponseFor(err error) (int, Response[any]) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	resp := NewErrorResponse(msg, code)
	resp.Retryable = parley_errors.IsRetryable(err)
	return status, resp
}
