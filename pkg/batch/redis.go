package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "photo_vault:batch:"

// RedisStore keeps batches as JSON values with a TTL so any replica can
// answer a poll.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, b *Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+b.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set batch: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Batch, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get batch: %w", err)
	}
	var b Batch
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}
	return &b, nil
}
