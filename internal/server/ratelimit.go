package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more submission from identity is admitted.
// An error means the limiter could not decide; the returned bool is then
// the fallback decision.
type Limiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// RateLimiterConfig holds configuration for submission rate limiting.
type RateLimiterConfig struct {
	// MaxRequests is the number of submissions admitted per window.
	MaxRequests int
	Window      time.Duration
	// CleanupInterval is how often expired windows are purged.
	CleanupInterval time.Duration
	// Now defaults to time.Now when nil.
	Now func() time.Time
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxRequests:     3,
		Window:          60 * time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

type windowEntry struct {
	start time.Time
	count int
}

// FixedWindowLimiter is a process-local fixed-window counter keyed by
// identity. It is best-effort: state is lost on restart and is not shared
// between instances.
type FixedWindowLimiter struct {
	config RateLimiterConfig
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFixedWindowLimiter creates a limiter and starts a background cleanup
// goroutine. Call Stop() to release resources.
func NewFixedWindowLimiter(config RateLimiterConfig) *FixedWindowLimiter {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	l := &FixedWindowLimiter{
		config:  config,
		now:     now,
		entries: make(map[string]*windowEntry),
		stopCh:  make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow admits the request if identity has fewer than MaxRequests in its
// current window. A window resets once more than Window has elapsed since
// it opened. It never returns an error.
func (l *FixedWindowLimiter) Allow(_ context.Context, identity string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identity]
	if !ok || now.Sub(e.start) > l.config.Window {
		l.entries[identity] = &windowEntry{start: now, count: 1}
		return true, nil
	}
	if e.count < l.config.MaxRequests {
		e.count++
		return true, nil
	}
	return false, nil
}

// Stop halts the background cleanup goroutine.
func (l *FixedWindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *FixedWindowLimiter) cleanup() {
	interval := l.config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.purgeExpired()
		}
	}
}

func (l *FixedWindowLimiter) purgeExpired() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		if now.Sub(e.start) > l.config.Window {
			delete(l.entries, id)
		}
	}
}

func (l *FixedWindowLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RedisLimiter is a fixed-window counter shared by every instance pointed
// at the same Redis. The first hit in a window creates the key with the
// window as its TTL; later hits only increment it.
type RedisLimiter struct {
	client      redis.Cmdable
	prefix      string
	maxRequests int
	window      time.Duration
}

// NewRedisLimiter returns a limiter storing counters under prefix.
func NewRedisLimiter(client redis.Cmdable, prefix string, maxRequests int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "contact:ratelimit:"
	}
	return &RedisLimiter{
		client:      client,
		prefix:      prefix,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow fails open: when Redis is unreachable the request is admitted and
// the error is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, identity string) (bool, error) {
	key := l.prefix + identity

	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		count = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("redis rate limit %s: %w", identity, err)
	}
	return count.Val() <= int64(l.maxRequests), nil
}

// ipLimiter wraps a token bucket with a last-seen timestamp for cleanup.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// FloodGuard is a coarse per-IP token bucket applied to every route. It is
// separate from the submission Limiter and only protects the process.
type FloodGuard struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFloodGuard allows perMinute requests per IP with an equal burst.
// Call Stop() to release resources.
func NewFloodGuard(perMinute int, cleanupInterval time.Duration) *FloodGuard {
	g := &FloodGuard{
		perMinute: perMinute,
		limiters:  make(map[string]*ipLimiter),
		stopCh:    make(chan struct{}),
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	go g.cleanup(cleanupInterval)
	return g
}

// Allow reports whether one more request from ip fits in its bucket.
func (g *FloodGuard) Allow(ip string) bool {
	g.mu.Lock()
	entry, ok := g.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(float64(g.perMinute)/60), g.perMinute)}
		g.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	g.mu.Unlock()

	return entry.limiter.Allow()
}

// Stop halts the background cleanup goroutine.
func (g *FloodGuard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

func (g *FloodGuard) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			threshold := time.Now().Add(-10 * time.Minute)
			g.mu.Lock()
			for ip, entry := range g.limiters {
				if entry.lastSeen.Before(threshold) {
					delete(g.limiters, ip)
				}
			}
			g.mu.Unlock()
		}
	}
}

// FloodGuardMiddleware returns middleware that rejects requests over the
// per-IP flood limit with 429. A nil guard disables it. When origins is set,
// the rejection carries its CORS headers so a browser on an allowed origin
// can read the 429.
func FloodGuardMiddleware(g *FloodGuard, trustForwardedFor bool, origins *OriginPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if g == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.Allow(extractIP(r, trustForwardedFor)) {
				if origins != nil {
					origins.decorate(w, r)
				}
				writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client IP. When trustForwardedFor is set the
// rightmost X-Forwarded-For entry is used, since that is the one appended
// by the proxy in front of us; leftmost entries are client-controlled.
func extractIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
