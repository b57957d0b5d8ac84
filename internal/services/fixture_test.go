package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"parley/internal/directory"
	"parley/internal/domain/conversation"
	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/outbox"
	"parley/internal/repository/memory"
	"parley/internal/storage"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *fakeClock
	store *memory.Store
	bus   *events.Bus
	proc  *outbox.Processor
	files *storage.MemoryStore

	alice, bob, eve user.Profile

	conversations *ConversationService
	messages      *MessageService
	threads       *ThreadService
	reactions     *ReactionService
	typing        *TypingService
	presence      *PresenceService
	chat          *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: newFakeClock(),
		store: memory.NewStore(),
		files: storage.NewMemoryStore("mem://files", "mem://thumbs"),
		alice: user.Profile{ID: uuid.New(), Username: "alice", FullName: "Alice"},
		bob:   user.Profile{ID: uuid.New(), Username: "bob", FullName: "Bob"},
		eve:   user.Profile{ID: uuid.New(), Username: "eve", FullName: "Eve"},
	}
	for _, p := range []user.Profile{f.alice, f.bob, f.eve} {
		f.store.PutProfile(p)
	}
	f.bus = events.NewBus(log)
	t.Cleanup(f.bus.Close)
	f.proc = outbox.NewProcessor(f.store.Outbox(), f.bus, log, 100, time.Hour, 3)

	clock := Clock(f.clock.Now)
	dir := directory.NewResolver(f.store.Profiles(), nil, log)
	f.conversations = NewConversationService(f.store, dir, f.proc, clock, log)
	f.threads = NewThreadService(f.store, f.proc, clock)
	f.messages = NewMessageService(f.store, f.files, f.threads, f.proc, clock, MessageLimits{MaxUploadBytes: 1 << 20}, log)
	f.reactions = NewReactionService(f.store, f.proc, clock)
	f.typing = NewTypingService(f.store, memory.NewTypingStore(), f.bus, dir, clock, 0, log)
	f.presence = NewPresenceService(memory.NewPresenceStore(), f.bus, dir, clock, 0, log)
	f.chat = NewChatService(f.conversations, f.messages)
	return f
}

// direct opens the alice/bob conversation.
func (f *fixture) direct() conversation.Conversation {
	f.t.Helper()
	conv, err := f.conversations.StartDirect(f.ctx, f.alice.ID, f.bob.ID)
	require.NoError(f.t, err)
	return conv
}

func (f *fixture) send(conv uuid.UUID, from user.Profile, text string) SendMessageInput {
	return SendMessageInput{
		ConversationID:  conv,
		SenderID:        from.ID,
		Content:         text,
		ClientMessageID: uuid.NewString(),
	}
}

func (f *fixture) flush() {
	f.t.Helper()
	_, err := f.proc.Flush(f.ctx)
	require.NoError(f.t, err)
}

func (f *fixture) subscribe(scope events.Scope) *events.Subscription {
	f.t.Helper()
	sub, err := f.bus.Subscribe(scope)
	require.NoError(f.t, err)
	f.t.Cleanup(sub.Release)
	return sub
}

// drain collects events until none arrive for a short while.
func drain(sub *events.Subscription) []events.ChangeEvent {
	var out []events.ChangeEvent
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}
