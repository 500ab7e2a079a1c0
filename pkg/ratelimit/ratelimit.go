// Package ratelimit counts failed attempts per key inside a fixed window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter blocks a key once it has failed max times within the window.
type Limiter interface {
	Blocked(ctx context.Context, key string) (bool, time.Duration, error)
	Fail(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisLimiter struct {
	rdb    *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter stores counters under "rate_limit:<prefix>:<key>".
func NewRedisLimiter(rdb *redis.Client, prefix string, max int, window time.Duration) Limiter {
	return &redisLimiter{rdb: rdb, prefix: prefix, max: int64(max), window: window}
}

func (l *redisLimiter) key(k string) string {
	return fmt.Sprintf("rate_limit:%s:%s", l.prefix, k)
}

func (l *redisLimiter) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	n, err := l.rdb.Get(ctx, l.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}
	if n < l.max {
		return false, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return true, l.window, nil
	}
	return true, ttl, nil
}

// Fail opens the window with SET NX EX and counts with INCR in one MULTI,
// so a counter never exists without a TTL.
func (l *redisLimiter) Fail(ctx context.Context, key string) (int64, error) {
	k := l.key(key)
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record attempt in redis: %w", err)
	}
	return incr.Val(), nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.key(key)).Err()
}

type entry struct {
	count   int64
	expires time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	max     int64
	window  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter is the single-process fallback used when redis is not configured.
func NewMemoryLimiter(max int, window time.Duration) Limiter {
	return &memoryLimiter{
		entries: make(map[string]*entry),
		max:     int64(max),
		window:  window,
		now:     time.Now,
	}
}

// current returns the live entry for key, dropping it if the window passed.
// Callers hold mu.
func (l *memoryLimiter) current(key string) *entry {
	e, ok := l.entries[key]
	if !ok {
		return nil
	}
	if !l.now().Before(e.expires) {
		delete(l.entries, key)
		return nil
	}
	return e
}

func (l *memoryLimiter) Blocked(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.current(key)
	if e == nil || e.count < l.max {
		return false, 0, nil
	}
	return true, e.expires.Sub(l.now()), nil
}

func (l *memoryLimiter) Fail(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.current(key)
	if e == nil {
		e = &entry{expires: l.now().Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}
