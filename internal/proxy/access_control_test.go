package proxy

import (
	"context"
	"testing"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/repository/memory"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParticipant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alice, bob, eve := uuid.New(), uuid.New(), uuid.New()
	conv := &conversation.Conversation{
		ID: uuid.New(),
		Participants: []conversation.Participant{
			{UserID: alice}, {UserID: bob},
		},
	}
	require.NoError(t, store.Conversations().Create(ctx, conv))

	ac := For(store)
	assert.NoError(t, ac.EnsureParticipant(ctx, conv.ID, alice))
	assert.NoError(t, ac.CanSendMessage(ctx, bob, conv.ID))
	assert.ErrorIs(t, ac.CanViewConversation(ctx, eve, conv.ID), parley_errors.ErrUnauthorized)
	assert.ErrorIs(t, ac.EnsureParticipant(ctx, uuid.New(), alice), parley_errors.ErrUnauthorized)

	require.NoError(t, store.Conversations().SoftDelete(ctx, conv.ID, time.Now()))
	assert.ErrorIs(t, ac.EnsureParticipant(ctx, conv.ID, alice), parley_errors.ErrUnauthorized)
}
