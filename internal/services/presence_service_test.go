package services

import (
	"testing"
	"time"

	"parley/internal/events"
	parley_errors "parley/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingIndicatorsExpire(t *testing.T) {
	f := newFixture(t)
	conv := f.direct()
	sub := f.subscribe(events.ConversationScope(conv.ID))

	require.NoError(t, f.typing.SetTyping(f.ctx, f.alice.ID, conv.ID, true))

	typing, err := f.typing.ListTypingUsers(f.ctx, conv.ID, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, typing, 1)
	assert.Equal(t, "alice", typing[0].Username)

	self, err := f.typing.ListTypingUsers(f.ctx, conv.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, self)

	f.clock.Advance(5 * time.Second)
	typing, err = f.typing.ListTypingUsers(f.ctx, conv.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, typing)

	evs := drain(sub)
	require.Len(t, evs, 1)
	assert.Equal(t, events.EntityTypingIndicator, evs[0].Entity)
	assert.Equal(t, events.KindUpdate, evs[0].Kind)
}

func TestTypingStopped(t *testing.T) {
	f := newFixture(t)
	conv := f.direct()
	require.NoError(t, f.typing.SetTyping(f.ctx, f.alice.ID, conv.ID, true))
	require.NoError(t, f.typing.SetTyping(f.ctx, f.alice.ID, conv.ID, false))

	typing, err := f.typing.ListTypingUsers(f.ctx, conv.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, typing)

	assert.ErrorIs(t, f.typing.SetTyping(f.ctx, f.eve.ID, conv.ID, true), parley_errors.ErrUnauthorized)
}

func TestOnlineUsersWindow(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(events.GlobalScope())

	require.NoError(t, f.presence.Heartbeat(f.ctx, f.alice.ID))
	f.clock.Advance(4 * time.Minute)
	require.NoError(t, f.presence.Heartbeat(f.ctx, f.bob.ID))

	online, err := f.presence.ListOnlineUsers(f.ctx)
	require.NoError(t, err)
	require.Len(t, online, 2)
	assert.Equal(t, "bob", online[0].Username)

	f.clock.Advance(time.Minute + time.Second)
	online, err = f.presence.ListOnlineUsers(f.ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "bob", online[0].Username)

	ok, err := f.presence.IsOnline(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.presence.SetOffline(f.ctx, f.bob.ID))
	online, err = f.presence.ListOnlineUsers(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, online)

	ok, err = f.presence.IsOnline(f.ctx, f.eve.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	evs := drain(sub)
	assert.Len(t, evs, 3)
	for _, ev := range evs {
		assert.Equal(t, events.EntityOnlineStatus, ev.Entity)
	}
}
