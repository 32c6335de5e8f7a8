package token

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "cyberguard:tokens:"

var _ Store = (*RedisStore)(nil)

// RedisStore shares one pair between every process using the same profile.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore keys the pair by profile; a zero ttl keeps the pair until cleared.
func NewRedisStore(client *redis.Client, profile string, ttl time.Duration) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{
		client: client,
		key:    redisKeyPrefix + profile,
		ttl:    ttl,
	}
}

func (r *RedisStore) Save(ctx context.Context, pair Pair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return errors.Wrap(err, "[RedisStore.Save] marshal")
	}
	return errors.Wrap(r.client.Set(ctx, r.key, data, r.ttl).Err(), "[RedisStore.Save] set")
}

func (r *RedisStore) Read(ctx context.Context) (Pair, bool) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return Pair{}, false
	}
	if err != nil {
		log.Err(err).Str("key", r.key).Msg("Failed to read tokens from redis")
		return Pair{}, false
	}

	var pair Pair
	if err := json.Unmarshal(val, &pair); err != nil {
		log.Err(err).Str("key", r.key).Msg("Stored tokens are corrupt")
		return Pair{}, false
	}
	if pair.Empty() {
		return Pair{}, false
	}
	return pair, true
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return errors.Wrap(r.client.Del(ctx, r.key).Err(), "[RedisStore.Clear] del")
}
