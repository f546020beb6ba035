package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("calendar lock not acquired")
)

// Locker serializes check-then-write critical sections against one or more
// calendars (a professional's diary, a room/box). Keys are opaque to the
// locker; the scheduling service derives them.
type Locker interface {
	WithCalendarLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisCalendarLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCalendarLocker creates a locker that uses one Redis key per
// calendar.
func NewRedisCalendarLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisCalendarLocker{
		client: client,
		ttl:    ttl,
	}
}

// WithCalendarLock acquires every key before running fn. Keys are taken in
// sorted order so two holders wanting the same pair cannot deadlock. If any
// key is already held the acquisition fails with ErrLockNotAcquired and
// nothing stays locked.
func (l *redisCalendarLocker) WithCalendarLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	token := uuid.NewString()
	var held []string

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = l.release(ctx, held[i], token)
		}
	}

	for _, key := range sorted {
		fullKey := fmt.Sprintf("lock:calendar:%s", key)
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			release()
			return fmt.Errorf("acquire calendar lock %s: %w", key, err)
		}
		if !ok {
			release()
			return ErrLockNotAcquired
		}
		held = append(held, fullKey)
	}

	defer release()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisCalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}
