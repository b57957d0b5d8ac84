package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"parley/internal/domain/presence"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key prefixes for presence
const (
	presenceKeyPrefix  = "presence:"          // JSON online status per user
	presenceLastSeenZS = "presence:last_seen" // Sorted set of user ids by last_seen (unix ms)
)

// PresenceStore keeps OnlineStatus rows in Redis.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewPresenceStore creates a new presence store. ttl bounds how long a
// status key survives without writes; it must exceed the presence window.
func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func (p *PresenceStore) Upsert(ctx context.Context, status presence.OnlineStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+status.UserID.String(), data, p.ttl)
	pipe.ZAdd(ctx, presenceLastSeenZS, goredis.Z{
		Score:  float64(status.LastSeen.UnixMilli()),
		Member: status.UserID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return transient("upsert presence", err)
	}
	return nil
}

func (p *PresenceStore) Get(ctx context.Context, userID uuid.UUID) (presence.OnlineStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return presence.OnlineStatus{}, fmt.Errorf("online status %s: %w", userID, parley_errors.ErrNotFound)
	}
	if err != nil {
		return presence.OnlineStatus{}, transient("get presence", err)
	}
	var status presence.OnlineStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return presence.OnlineStatus{}, err
	}
	return status, nil
}

// ListSeenSince returns users seen at or after since. Members last seen
// before since are trimmed from the sorted set in the same round trip.
func (p *PresenceStore) ListSeenSince(ctx context.Context, since time.Time) ([]presence.OnlineStatus, error) {
	cutoff := strconv.FormatInt(since.UnixMilli(), 10)
	pipe := p.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, presenceLastSeenZS, "-inf", "("+cutoff)
	rangeCmd := pipe.ZRangeByScore(ctx, presenceLastSeenZS, &goredis.ZRangeBy{Min: cutoff, Max: "+inf"})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, transient("list presence", err)
	}
	ids := rangeCmd.Val()
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = presenceKeyPrefix + id
	}
	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, transient("get presence batch", err)
	}

	out := make([]presence.OnlineStatus, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired between the two reads
		}
		var status presence.OnlineStatus
		if err := json.Unmarshal([]byte(s), &status); err != nil {
			continue
		}
		out = append(out, status)
	}
	return out, nil
}
