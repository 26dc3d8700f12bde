package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLock serializes conversation turns across API instances.
// Key: lock:session:{surveyId}:{phone}
type SessionLock struct {
	redis *RedisClient
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
}

// NewSessionLock creates a SessionLock. ttl bounds how long a crashed
// holder can block a session; wait bounds how long Lock polls (0 means
// until ctx is done).
func NewSessionLock(redis *RedisClient, ttl, wait time.Duration) *SessionLock {
	return &SessionLock{redis: redis, ttl: ttl, wait: wait, poll: 25 * time.Millisecond}
}

// Lock polls until the lock is acquired, the wait elapses or ctx is done.
func (l *SessionLock) Lock(ctx context.Context, key string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	lockKey := "lock:session:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.redis.SetNX(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return func() { l.release(lockKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *SessionLock) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := l.redis.Run(ctx, releaseScript, []string{lockKey}, token); err != nil {
		log.Warn().Err(err).Str("key", lockKey).Msg("Failed to release session lock")
	}
}
