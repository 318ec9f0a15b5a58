package auth

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LoginLimiter tracks failed logins per identity over a sliding window.
type LoginLimiter interface {
	// Locked reports whether the identity has reached the failure limit.
	Locked(ctx context.Context, identity string) (bool, error)
	RecordFailure(ctx context.Context, identity string) error
	Reset(ctx context.Context, identity string) error
}

func limiterKey(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// MemoryLimiter keeps attempts in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	now      func() time.Time
	attempts map[string][]time.Time
}

// NewMemoryLimiter builds a limiter allowing max failures per window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:      max,
		window:   window,
		now:      time.Now,
		attempts: make(map[string][]time.Time),
	}
}

// WithClock overrides the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// prune drops expired attempts; callers hold l.mu.
func (l *MemoryLimiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	kept := l.attempts[key][:0]
	for _, at := range l.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, key)
		return nil
	}
	l.attempts[key] = kept
	return kept
}

func (l *MemoryLimiter) Locked(_ context.Context, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(limiterKey(identity))) >= l.max, nil
}

func (l *MemoryLimiter) RecordFailure(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := limiterKey(identity)
	l.attempts[key] = append(l.prune(key), l.now())
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, limiterKey(identity))
	return nil
}

// RedisLimiter shares attempts across instances using one sorted set per
// identity scored by attempt time.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter builds a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window, prefix: "login_attempts:", now: time.Now}
}

// WithClock overrides the time source.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) key(identity string) string {
	return l.prefix + limiterKey(identity)
}

func (l *RedisLimiter) cutoff() string {
	return strconv.FormatInt(l.now().Add(-l.window).UnixNano(), 10)
}

func (l *RedisLimiter) Locked(ctx context.Context, identity string) (bool, error) {
	key := l.key(identity)
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", l.cutoff())
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() >= int64(l.max), nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, identity string) error {
	key := l.key(identity)
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", l.cutoff())
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(l.now().UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLimiter) Reset(ctx context.Context, identity string) error {
	return l.client.Del(ctx, l.key(identity)).Err()
}
