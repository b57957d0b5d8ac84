package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"parley/internal/domain/conversation"
	"parley/internal/domain/message"
	"parley/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to PARLEY_TEST_DATABASE_URL and applies migrations.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("PARLEY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PARLEY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = database.Migrate(ctx, pool)
	require.NoError(t, err)
	return NewPostgresStore(pool)
}

func seedConversation(t *testing.T, store *PostgresStore, members ...uuid.UUID) conversation.Conversation {
	t.Helper()
	now := time.Now().UTC()
	c := conversation.Conversation{ID: uuid.New(), CreatedAt: now}
	for _, id := range members {
		c.Participants = append(c.Participants, conversation.Participant{ConversationID: c.ID, UserID: id, JoinedAt: now})
	}
	require.NoError(t, store.Conversations().Create(context.Background(), &c))
	return c
}

func seedMessage(t *testing.T, store *PostgresStore, conversationID, senderID uuid.UUID, text string) message.Message {
	t.Helper()
	m := message.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: senderID, Content: &text, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Messages().Create(context.Background(), &m))
	return m
}

func TestPostgresThreadCountConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sender := uuid.New()
	conv := seedConversation(t, store, sender)
	parent := seedMessage(t, store, conv.ID, sender, "parent")

	adjust := func(n, delta int) {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.WithTx(ctx, func(tx Store) error {
					_, err := tx.Messages().AdjustThreadCount(ctx, parent.ID, delta)
					return err
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	}

	adjust(20, 1)
	got, err := store.Messages().GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ThreadCount)

	adjust(25, -1)
	got, err = store.Messages().GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ThreadCount)
}

func TestPostgresSearchTreatsWildcardsLiterally(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sender := uuid.New()
	conv := seedConversation(t, store, sender)
	hit := seedMessage(t, store, conv.ID, sender, "shipped 100% of it")
	seedMessage(t, store, conv.ID, sender, "shipped 1000 of it")

	found, err := store.Messages().Search(ctx, conv.ID, "100%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, hit.ID, found[0].ID)
}
