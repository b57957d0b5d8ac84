package handler

import (
	"fmt"
	"strconv"

	"parley/internal/auth"
	parley_errors "parley/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fail hands err to middleware.ErrorHandler, which picks the status.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func invalid(c *gin.Context, what string, err error) {
	if err != nil {
		fail(c, fmt.Errorf("%s: %v: %w", what, err, parley_errors.ErrValidation))
		return
	}
	fail(c, fmt.Errorf("%s: %w", what, parley_errors.ErrValidation))
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := auth.UserIDFromContext(c.Request.Context())
	if !ok {
		fail(c, parley_errors.ErrUnauthorized)
	}
	return userID, ok
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		invalid(c, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseNullUUID(value string) (uuid.NullUUID, error) {
	if value == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
