package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/LevelUp/pkg/errors"
)

const keyPrefix = "mission:completion:"

// releaseScript deletes the lock only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// CompletionLock serializes completions of the same execution or daily
// instance across service replicas.
type CompletionLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCompletionLock creates a Redis-backed completion lock. Locks expire after
// ttl even if never released.
func NewCompletionLock(client *redis.Client, ttl time.Duration) *CompletionLock {
	return &CompletionLock{
		client: client,
		ttl:    ttl,
	}
}

// Acquire takes the lock for key and returns the token needed to release it.
// It returns an ErrConflict AppError when the lock is already held.
func (l *CompletionLock) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx completion lock: %w", err)
	}
	if !ok {
		return "", apperrors.Conflict("a completion for this item is already in progress")
	}

	return token, nil
}

// Release frees the lock if token still owns it. Releasing an expired or
// foreign lock is a no-op.
func (l *CompletionLock) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release completion lock: %w", err)
	}

	return nil
}
