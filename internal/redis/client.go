package redis

import (
	"context"
	"fmt"

	parley_errors "parley/pkg/errors"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NewClient creates a Redis client. Callers own it and close it on shutdown.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping checks if Redis is available
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return transient("ping", err)
	}
	return nil
}

// transient marks a Redis failure as retryable.
func transient(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %v", op, parley_errors.ErrTransientStore, err)
}
