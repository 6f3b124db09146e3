package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultLockKey is the Redis key guarding reminder runs across replicas.
const DefaultLockKey = "carlog:reminders:run-lock"

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a Locker shared by every replica pointing at the same Redis.
// TTL bounds how long a crashed holder can block other replicas.
type RedisLock struct {
	Client redis.UniversalClient
	Key    string
	TTL    time.Duration
}

// NewRedisLock dials addr and verifies connectivity.
func NewRedisLock(ctx context.Context, addr string, ttl time.Duration) (*RedisLock, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLock{Client: rdb, Key: DefaultLockKey, TTL: ttl}, nil
}

// TryLock implements Locker with SET NX PX and a random token.
func (l *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.Client, []string{l.Key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", l.Key).Msg("redis lock release failed; it will expire")
		}
	}
	return release, true, nil
}

// Close closes the underlying client.
func (l *RedisLock) Close() error { return l.Client.Close() }
