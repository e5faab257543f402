package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another optimization run holds the calendar.
var ErrNotAcquired = errors.New("calendar lock not acquired")

// CalendarLocker serialises read-modify-write passes over a single
// (doctor, date) calendar. The original system ran optimization with no mutual
// exclusion at all and relied on single-operator usage.
type CalendarLocker interface {
	WithCalendarLock(ctx context.Context, doctorID, date string, fn func(ctx context.Context) error) error
}

type redisCalendarLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCalendarLocker creates a locker backed by a per-calendar Redis key.
func NewRedisCalendarLocker(client *redis.Client, ttl time.Duration) CalendarLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisCalendarLocker{client: client, ttl: ttl}
}

func (l *redisCalendarLocker) WithCalendarLock(ctx context.Context, doctorID, date string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:calendar:%s:%s", doctorID, date)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire calendar lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
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

// Noop returns a locker that runs the callback without any locking. Used in
// tests and single-process deployments without Redis.
func Noop() CalendarLocker {
	return noopLocker{}
}

type noopLocker struct{}

func (noopLocker) WithCalendarLock(ctx context.Context, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
