package services

import (
	"testing"

	"parley/internal/events"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	_, err := f.conversations.Create(f.ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.conversations.Create(f.ctx, f.bob.ID, f.alice.ID)
	assert.ErrorIs(t, err, parley_errors.ErrConflict)

	_, err = f.conversations.Create(f.ctx, f.alice.ID, f.alice.ID)
	assert.ErrorIs(t, err, parley_errors.ErrValidation)
}

func TestStartDirectReturnsExisting(t *testing.T) {
	f := newFixture(t)
	first := f.direct()
	second, err := f.conversations.StartDirect(f.ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.conversations.StartDirect(f.ctx, f.bob.ID, f.bob.ID)
	assert.ErrorIs(t, err, parley_errors.ErrValidation)
}

func TestGroupConversation(t *testing.T) {
	f := newFixture(t)
	group, err := f.conversations.Create(f.ctx, f.alice.ID, f.bob.ID, f.eve.ID, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, group.IsDirect())
	assert.Len(t, group.Participants, 3)

	profiles, err := f.conversations.Participants(f.ctx, group.ID, f.eve.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	assert.Equal(t, "alice", profiles[0].Username)

	_, err = f.conversations.Participants(f.ctx, group.ID, uuid.New())
	assert.ErrorIs(t, err, parley_errors.ErrUnauthorized)
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture(t)
	conv := f.direct()
	f.flush()
	sub := f.subscribe(events.ConversationScope(conv.ID))

	assert.ErrorIs(t, f.conversations.Delete(f.ctx, conv.ID, f.eve.ID), parley_errors.ErrUnauthorized)
	require.NoError(t, f.conversations.Delete(f.ctx, conv.ID, f.alice.ID))

	list, err := f.conversations.List(f.ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.messages.Send(f.ctx, f.send(conv.ID, f.alice, "anyone?"))
	assert.ErrorIs(t, err, parley_errors.ErrUnauthorized)

	f.flush()
	evs := drain(sub)
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindDelete, evs[0].Kind)
	assert.Equal(t, events.EntityConversation, evs[0].Entity)

	// a fresh direct conversation can be opened after the old one is gone
	fresh, err := f.conversations.StartDirect(f.ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
}
