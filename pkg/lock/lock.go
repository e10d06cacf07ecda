// Package lock provides a Redis mutex used to run the thumbnail backfill on a
// single replica at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by TryAcquire when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another owner")

// DistributedLock is a SET NX lock with a TTL. Holders are identified by a
// random token so a holder whose lease expired cannot release a successor's
// lock.
type DistributedLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// New creates a DistributedLock on key. ttl bounds how long a crashed holder
// blocks the others.
func New(client redis.Cmdable, key string, ttl time.Duration) *DistributedLock {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DistributedLock{client: client, key: key, ttl: ttl}
}

// TryAcquire makes a single attempt and returns the holder token. It returns
// ErrNotAcquired when the lock is held elsewhere.
func (l *DistributedLock) TryAcquire(ctx context.Context) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx %s: %w", l.key, err)
	}
	if !ok {
		return "", ErrNotAcquired
	}
	return token, nil
}

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Release gives the lock up if token still owns it.
func (l *DistributedLock) Release(ctx context.Context, token string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
