package commands

import (
	"context"
	"errors"
	"testing"

	"parley/internal/auth"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusExecute(t *testing.T) {
	bus := NewBus()
	var got SetTypingCommand
	bus.Register(TypeSetTyping, HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		got = cmd.(SetTypingCommand)
		return Result{AggregateID: got.ConversationID.String()}, nil
	}))

	cmd := SetTypingCommand{ConversationID: uuid.New(), UserID: uuid.New(), IsTyping: true}
	res, err := bus.Execute(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd, got)
	assert.Equal(t, cmd.ConversationID.String(), res.AggregateID)
	assert.True(t, bus.Registered(TypeSetTyping))
}

func TestBusUnknownCommand(t *testing.T) {
	_, err := NewBus().Execute(context.Background(), HeartbeatCommand{UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestBusValidatesBeforeHandling(t *testing.T) {
	bus := NewBus()
	called := false
	bus.Register(TypeSendMessage, HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		called = true
		return Result{}, nil
	}))

	_, err := bus.Execute(context.Background(), SendMessageCommand{ConversationID: uuid.New(), SenderID: uuid.New()})
	assert.ErrorIs(t, err, parley_errors.ErrValidation)
	assert.False(t, called)
}

func TestBusProxyDenies(t *testing.T) {
	denied := errors.New("denied")
	bus := NewBus(ProxyFunc(func(ctx context.Context, cmd Command) error { return denied }))
	bus.Register(TypeHeartbeat, HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		return Result{}, nil
	}))
	_, err := bus.Execute(context.Background(), HeartbeatCommand{UserID: uuid.New()})
	assert.ErrorIs(t, err, denied)
}

func TestReceiptCommandType(t *testing.T) {
	cmd := ReceiptCommand{Type: TypeMarkRead, ConversationID: uuid.New(), UserID: uuid.New()}
	assert.NoError(t, cmd.Validate())
	assert.Equal(t, TypeMarkRead, cmd.CommandType())

	cmd.Type = "message.played"
	assert.ErrorIs(t, cmd.Validate(), parley_errors.ErrValidation)
}

func TestActorProxy(t *testing.T) {
	bus := NewBus(ActorProxy())
	bus.Register(TypeHeartbeat, HandlerFunc(func(ctx context.Context, cmd Command) (Result, error) {
		return Result{}, nil
	}))

	me := uuid.New()
	ctx := auth.WithUserID(context.Background(), me)

	_, err := bus.Execute(ctx, HeartbeatCommand{UserID: me})
	require.NoError(t, err)

	_, err = bus.Execute(ctx, HeartbeatCommand{UserID: uuid.New()})
	assert.ErrorIs(t, err, parley_errors.ErrUnauthorized)

	_, err = bus.Execute(context.Background(), HeartbeatCommand{UserID: uuid.New()})
	assert.NoError(t, err)
}
