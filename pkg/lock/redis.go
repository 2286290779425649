package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const acquireRetryInterval = 50 * time.Millisecond

// releaseScript deletes the lock only when the stored token still belongs
// to the holder, so an expired lock re-acquired by someone else survives.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker holds locks in Redis with SET NX and a TTL, extending mutual
// exclusion across api and worker processes.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(redisURL string) (*RedisLocker, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisLocker{
		client: redis.NewClient(options),
		ttl:    DefaultTTL,
		prefix: "leadflow:lock:",
	}, nil
}

// NewRedisLockerWithClient wraps an existing client, mainly for tests.
func NewRedisLockerWithClient(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    DefaultTTL,
		prefix: "leadflow:lock:",
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	token := uuid.New().String()
	redisKey := l.prefix + key

	for {
		acquired, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", key, err)
		}

		if acquired {
			break
		}

		select {
		case <-time.After(acquireRetryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	unlock := func(ctx context.Context) error {
		released, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock for %s: %w", key, err)
		}

		if released == 0 {
			return fmt.Errorf("lock for %s expired before release", key)
		}

		return nil
	}

	return unlock, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
