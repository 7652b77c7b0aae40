package quota

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the state of one key's window after a request was counted.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func result(limit, count int, reset time.Duration) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: count <= limit, Limit: limit, Remaining: remaining, Reset: reset}
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in process memory. Suitable for a single node.
type MemoryLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, period: period, now: time.Now, windows: make(map[string]*window)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++
	return result(l.limit, w.count, w.resetAt.Sub(now)), nil
}

// Sweep drops windows that have already reset.
func (l *MemoryLimiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

// RedisLimiter shares windows across nodes through INCR and PEXPIRE.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, period: period, prefix: "keepit:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.prefix + key
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, k, l.period).Err(); err != nil {
			return Result{}, err
		}
	}
	ttl, err := l.client.PTTL(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	if ttl < 0 {
		// Key lost its expiry; restart the window.
		if err := l.client.PExpire(ctx, k, l.period).Err(); err != nil {
			return Result{}, err
		}
		ttl = l.period
	}
	return result(l.limit, int(count), ttl), nil
}
