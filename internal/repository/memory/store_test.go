package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func seedConversation(t *testing.T, s *Store, members ...uuid.UUID) conversation.Conversation {
	t.Helper()
	c := conversation.Conversation{ID: uuid.New(), CreatedAt: base}
	for _, m := range members {
		c.Participants = append(c.Participants, conversation.Participant{UserID: m, JoinedAt: base})
	}
	require.NoError(t, s.Conversations().Create(context.Background(), &c))
	return c
}

func seedMessage(t *testing.T, s *Store, convID, sender uuid.UUID, at time.Time) message.Message {
	t.Helper()
	m := message.Message{ID: uuid.New(), ConversationID: convID, SenderID: sender, Content: message.NormalizeContent("hi"), CreatedAt: at}
	require.NoError(t, s.Messages().Create(context.Background(), &m))
	return m
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := uuid.New()
	conv := seedConversation(t, s, alice)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.Store) error {
		m := message.Message{ID: uuid.New(), ConversationID: conv.ID, SenderID: alice, CreatedAt: base}
		require.NoError(t, tx.Messages().Create(ctx, &m))
		require.NoError(t, tx.Conversations().Touch(ctx, conv.ID, base.Add(time.Hour)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	msgs, err := s.Messages().ListTopLevel(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	got, err := s.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, base, got.UpdatedAt)
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv := seedConversation(t, s, uuid.New())

	require.NoError(t, s.Conversations().Touch(ctx, conv.ID, base.Add(2*time.Minute)))
	require.NoError(t, s.Conversations().Touch(ctx, conv.ID, base.Add(time.Minute)))

	got, err := s.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Minute), got.UpdatedAt)
}

func TestDirectKeyIsUnique(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	first := conversation.Conversation{ID: uuid.New(), DirectKey: conversation.DirectKey(a, b), CreatedAt: base}
	require.NoError(t, s.Conversations().Create(ctx, &first))

	second := conversation.Conversation{ID: uuid.New(), DirectKey: conversation.DirectKey(b, a), CreatedAt: base}
	assert.ErrorIs(t, s.Conversations().Create(ctx, &second), parley_errors.ErrConflict)
}

func TestClientMessageIDIsUniquePerConversation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := uuid.New()
	conv := seedConversation(t, s, alice)

	m := message.Message{ID: uuid.New(), ConversationID: conv.ID, SenderID: alice, ClientMessageID: "c-1", CreatedAt: base}
	require.NoError(t, s.Messages().Create(ctx, &m))
	dup := message.Message{ID: uuid.New(), ConversationID: conv.ID, SenderID: alice, ClientMessageID: "c-1", CreatedAt: base}
	assert.ErrorIs(t, s.Messages().Create(ctx, &dup), parley_errors.ErrConflict)

	got, err := s.Messages().GetByClientMessageID(ctx, conv.ID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

func TestAdjustThreadCountConcurrentAndFloored(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := uuid.New()
	conv := seedConversation(t, s, alice)
	parent := seedMessage(t, s, conv.ID, alice, base)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Messages().AdjustThreadCount(ctx, parent.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Messages().GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.ThreadCount)

	_, err = s.Messages().AdjustThreadCount(ctx, parent.ID, -(n + 5))
	require.NoError(t, err)
	got, err = s.Messages().GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ThreadCount)
}

func TestMarkReadReturnsOnlyChangedRows(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	conv := seedConversation(t, s, alice, bob)
	seedMessage(t, s, conv.ID, alice, base)
	seedMessage(t, s, conv.ID, alice, base.Add(time.Second))
	seedMessage(t, s, conv.ID, bob, base.Add(2*time.Second))

	changed, err := s.Messages().MarkRead(ctx, conv.ID, bob, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	for _, m := range changed {
		assert.True(t, m.IsRead)
		assert.True(t, m.IsDelivered)
	}

	again, err := s.Messages().MarkRead(ctx, conv.ID, bob, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestListForUserOrdersByActivityWithUnread(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	older := seedConversation(t, s, alice, bob)
	newer := seedConversation(t, s, alice, bob)
	seedMessage(t, s, older.ID, bob, base.Add(time.Second))
	require.NoError(t, s.Conversations().Touch(ctx, newer.ID, base.Add(time.Hour)))

	list, err := s.Conversations().ListForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, 0, list[0].UnreadCount)
	assert.Equal(t, 1, list[1].UnreadCount)
	assert.Len(t, list[1].Participants, 2)
}

func TestReactionToggle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	r := message.Reaction{ID: uuid.New(), MessageID: uuid.New(), UserID: uuid.New(), Emoji: "🔥", CreatedAt: base}

	_, added, err := s.Reactions().Toggle(ctx, r)
	require.NoError(t, err)
	assert.True(t, added)

	list, err := s.Reactions().ListByMessage(ctx, r.MessageID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	removed, added, err := s.Reactions().Toggle(ctx, message.Reaction{ID: uuid.New(), MessageID: r.MessageID, UserID: r.UserID, Emoji: "🔥", CreatedAt: base})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, r.ID, removed.ID)

	list, err = s.Reactions().ListByMessage(ctx, r.MessageID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSoftDeleteHidesAttachments(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := uuid.New()
	conv := seedConversation(t, s, alice)
	m := message.Message{
		ID: uuid.New(), ConversationID: conv.ID, SenderID: alice, HasAttachment: true, CreatedAt: base,
		Attachments: []message.Attachment{{ID: uuid.New(), FileName: "a.png", FileType: "image/png", FileURL: "u", CreatedAt: base}},
	}
	require.NoError(t, s.Messages().Create(ctx, &m))

	got, err := s.Messages().GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, m.ID, got.Attachments[0].MessageID)

	_, err = s.Messages().SoftDelete(ctx, m.ID, base.Add(time.Minute))
	require.NoError(t, err)
	got, err = s.Messages().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
	assert.Empty(t, got.Attachments)

	_, err = s.Messages().SoftDelete(ctx, m.ID, base.Add(2*time.Minute))
	assert.ErrorIs(t, err, parley_errors.ErrNotFound)
}
