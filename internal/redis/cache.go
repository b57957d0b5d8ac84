package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parley/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - profile:{user_id} - profile cache

// CacheConfig contains configuration for caching
type CacheConfig struct {
	ProfileTTL time.Duration
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{ProfileTTL: 5 * time.Minute}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{client: client, config: config}
}

func profileKey(id uuid.UUID) string {
	return fmt.Sprintf("profile:%s", id.String())
}

// GetProfiles returns the cached profiles and the ids that missed.
func (c *CacheStore) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Profile, []uuid.UUID, error) {
	result := make(map[uuid.UUID]user.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return result, ids, transient("get profiles", err)
	}

	var misses []uuid.UUID
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, ids[i])
			continue
		}
		var p user.Profile
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			misses = append(misses, ids[i])
			continue
		}
		result[ids[i]] = p
	}
	return result, misses, nil
}

// SetProfiles stores profiles in cache
func (c *CacheStore) SetProfiles(ctx context.Context, profiles []user.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, profileKey(p.ID), data, c.config.ProfileTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return transient("set profiles", err)
	}
	return nil
}
