package repository

import (
	"context"
	"errors"
	"testing"

	parley_errors "parley/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))

	err := mapError("get message", pgx.ErrNoRows)
	assert.ErrorIs(t, err, parley_errors.ErrNotFound)
	assert.Contains(t, err.Error(), "get message")

	assert.ErrorIs(t, mapError("insert", &pgconn.PgError{Code: "23505"}), parley_errors.ErrConflict)

	transient := mapError("query", &pgconn.PgError{Code: "08006"})
	assert.ErrorIs(t, transient, parley_errors.ErrTransientStore)
	assert.True(t, parley_errors.IsRetryable(transient))

	other := errors.New("syntax error")
	mapped := mapError("query", other)
	assert.ErrorIs(t, mapped, other)
	assert.False(t, parley_errors.IsRetryable(mapped))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(&pgconn.PgError{Code: "08006"}))
	assert.True(t, isConnectionError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isConnectionError(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, isConnectionError(&pgconn.ConnectError{}))
	assert.True(t, isConnectionError(context.DeadlineExceeded))
	assert.False(t, isConnectionError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isConnectionError(errors.New("boom")))
}

func TestBuildPlaceholders(t *testing.T) {
	assert.Equal(t, "", buildPlaceholders(1, 0))
	assert.Equal(t, "$1", buildPlaceholders(1, 1))
	assert.Equal(t, "$4,$5,$6", buildPlaceholders(4, 3))
}

func TestRollbackErrorKeepsCause(t *testing.T) {
	cause := errors.New("send: conflict")
	cause = errors.Join(cause, parley_errors.ErrConflict)

	assert.Same(t, cause, rollbackError(cause, nil))
	assert.Same(t, cause, rollbackError(cause, pgx.ErrTxClosed))

	joined := rollbackError(cause, &pgconn.PgError{Code: "08006"})
	assert.ErrorIs(t, joined, parley_errors.ErrConflict)
	assert.ErrorIs(t, joined, parley_errors.ErrTransientStore)
	assert.Contains(t, joined.Error(), "rollback")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "plain", escapeLike("plain"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `snake\_case`, escapeLike("snake_case"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}
