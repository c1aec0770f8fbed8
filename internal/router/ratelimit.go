// internal/router/ratelimit.go
package router

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"donation-service/internal/metrics"

	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
}

// RedisLimiter shares its counters between replicas.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "donation:ratelimit"}
}

func (l *RedisLimiter) Limit() int { return l.limit }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + ":" + key

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, err
	}
	// first hit opens the window
	if count == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	ttl, err := l.rdb.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		// a key without expiry would never reset
		_ = l.rdb.Expire(ctx, k, l.window).Err()
		ttl = l.window
	}

	return decide(int(count), l.limit, ttl), nil
}

type bucket struct {
	count int
	until time.Time
}

// MemoryLimiter is the single-instance fallback when Redis is not configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
	calls   int
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Limit() int { return l.limit }

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%1024 == 0 {
		for k, b := range l.buckets {
			if now.After(b.until) {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	return decide(b.count, l.limit, b.until.Sub(now)), nil
}

func decide(count, limit int, reset time.Duration) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= limit, Remaining: remaining, Reset: reset}
}

// RateLimit rejects clients over the limit with 429. Limiter errors let the
// request through.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), "ip:"+clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			resetSecs := int(d.Reset.Round(time.Second).Seconds())
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSecs))

			if !d.Allowed {
				metrics.RateLimitExceeded.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(max(resetSecs, 1)))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]string{
					"error": "Too many requests, please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads RemoteAddr, which TrustedRealIP has already rewritten when the
// request came through a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
