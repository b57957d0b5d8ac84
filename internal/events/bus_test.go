package events

import (
	"context"
	"testing"
	"time"

	"parley/internal/domain/message"
	"parley/internal/domain/presence"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ChangeEvent{}
}

func assertNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %s %s", ev.Kind, ev.Entity)
	case <-time.After(50 * time.Millisecond):
	}
}

func newMessage(conversationID uuid.UUID) message.Message {
	text := "hello"
	return message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       uuid.New(),
		Content:        &text,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestBusConversationScope(t *testing.T) {
	bus := NewBus(logger.Nop())
	defer bus.Close()

	convA, convB := uuid.New(), uuid.New()
	sub, err := bus.Subscribe(ConversationScope(convA))
	require.NoError(t, err)
	defer sub.Release()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(KindInsert, newMessage(convB), time.Now())))
	msg := newMessage(convA)
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(KindInsert, msg, time.Now())))

	ev := receive(t, sub)
	assert.Equal(t, KindInsert, ev.Kind)
	assert.Equal(t, EntityMessage, ev.Entity)
	assert.Equal(t, msg.ID, ev.Payload.(MessagePayload).Message.ID)
	assertNothing(t, sub)
}

func TestBusMessageScopeCoversReactionsAttachmentsAndReplies(t *testing.T) {
	bus := NewBus(logger.Nop())
	defer bus.Close()

	conv := uuid.New()
	parent := newMessage(conv)
	sub, err := bus.Subscribe(MessageScope(parent.ID))
	require.NoError(t, err)
	defer sub.Release()

	reply := newMessage(conv)
	reply.ParentMessageID = uuid.NullUUID{UUID: parent.ID, Valid: true}
	other := newMessage(conv)

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(KindUpdate, parent, now)))
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(KindInsert, other, now)))
	require.NoError(t, bus.Publish(ctx, NewReactionEvent(KindInsert, message.Reaction{ID: uuid.New(), MessageID: parent.ID, UserID: uuid.New(), Emoji: "👍"}, conv, now)))
	require.NoError(t, bus.Publish(ctx, NewAttachmentEvent(KindInsert, message.Attachment{ID: uuid.New(), MessageID: parent.ID}, conv, now)))
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(KindInsert, reply, now)))

	assert.Equal(t, EntityMessage, receive(t, sub).Entity)
	assert.Equal(t, EntityReaction, receive(t, sub).Entity)
	assert.Equal(t, EntityAttachment, receive(t, sub).Entity)
	got := receive(t, sub)
	assert.Equal(t, reply.ID, got.MessageID)
	assertNothing(t, sub)
}

func TestBusGlobalScopeReceivesPresenceOnly(t *testing.T) {
	bus := NewBus(logger.Nop())
	defer bus.Close()

	sub, err := bus.Subscribe(GlobalScope())
	require.NoError(t, err)
	defer sub.Release()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewMessageEvent(KindInsert, newMessage(uuid.New()), time.Now())))
	status := presence.OnlineStatus{UserID: uuid.New(), IsOnline: true, LastSeen: time.Now()}
	require.NoError(t, bus.Publish(ctx, NewPresenceEvent(status, time.Now())))

	ev := receive(t, sub)
	assert.Equal(t, EntityOnlineStatus, ev.Entity)
	assertNothing(t, sub)
}

func TestBusSlowConsumerKeepsOrder(t *testing.T) {
	bus := NewBus(logger.Nop())
	defer bus.Close()

	conv := uuid.New()
	sub, err := bus.Subscribe(ConversationScope(conv))
	require.NoError(t, err)
	defer sub.Release()

	const n = 500
	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		msg := newMessage(conv)
		ids[i] = msg.ID
		require.NoError(t, bus.Publish(context.Background(), NewMessageEvent(KindInsert, msg, time.Now())))
	}

	for i := 0; i < n; i++ {
		ev := receive(t, sub)
		require.Equal(t, ids[i], ev.MessageID)
	}
}

func TestReleaseStopsDelivery(t *testing.T) {
	bus := NewBus(logger.Nop())
	defer bus.Close()

	conv := uuid.New()
	sub, err := bus.Subscribe(ConversationScope(conv))
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount())

	require.NoError(t, bus.Publish(context.Background(), NewMessageEvent(KindInsert, newMessage(conv), time.Now())))
	sub.Release()
	sub.Release()

	require.NoError(t, bus.Publish(context.Background(), NewMessageEvent(KindInsert, newMessage(conv), time.Now())))
	for range sub.Events() {
	}
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.Equal(t, 0, sub.Pending())
}

func TestClosedBusRejectsUse(t *testing.T) {
	bus := NewBus(logger.Nop())
	sub, err := bus.Subscribe(GlobalScope())
	require.NoError(t, err)

	bus.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)

	_, err = bus.Subscribe(GlobalScope())
	assert.ErrorIs(t, err, parley_errors.ErrClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), NewPresenceEvent(presence.OnlineStatus{}, time.Now())), parley_errors.ErrClosed)
}

type countingObserver struct {
	delivered   int
	subscribers int
}

func (o *countingObserver) EventDelivered(_ Entity, n int) { o.delivered += n }
func (o *countingObserver) SubscribersChanged(n int)       { o.subscribers = n }

func TestBusObserver(t *testing.T) {
	obs := &countingObserver{}
	bus := NewBus(logger.Nop(), WithObserver(obs))
	defer bus.Close()

	conv := uuid.New()
	sub, err := bus.Subscribe(ConversationScope(conv))
	require.NoError(t, err)
	assert.Equal(t, 1, obs.subscribers)

	require.NoError(t, bus.Publish(context.Background(), NewMessageEvent(KindInsert, newMessage(conv), time.Now())))
	receive(t, sub)
	sub.Release()

	assert.Equal(t, 1, obs.delivered)
	assert.Equal(t, 0, obs.subscribers)
}
