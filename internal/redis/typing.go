package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"parley/internal/domain/presence"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const typingKeyPrefix = "typing:" // Hash per conversation: user id -> JSON indicator

// TypingStore keeps TypingIndicator rows in one hash per conversation.
type TypingStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewTypingStore creates a typing store. ttl is refreshed on every write so
// idle conversations drop their hash.
func NewTypingStore(client *goredis.Client, ttl time.Duration) *TypingStore {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &TypingStore{client: client, ttl: ttl}
}

func (s *TypingStore) Upsert(ctx context.Context, ind presence.TypingIndicator) error {
	data, err := json.Marshal(ind)
	if err != nil {
		return err
	}
	key := typingKeyPrefix + ind.ConversationID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, ind.UserID.String(), data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return transient("upsert typing", err)
	}
	return nil
}

func (s *TypingStore) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]presence.TypingIndicator, error) {
	fields, err := s.client.HGetAll(ctx, typingKeyPrefix+conversationID.String()).Result()
	if err != nil {
		return nil, transient("list typing", err)
	}
	out := make([]presence.TypingIndicator, 0, len(fields))
	for _, raw := range fields {
		var ind presence.TypingIndicator
		if err := json.Unmarshal([]byte(raw), &ind); err != nil {
			continue
		}
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}
