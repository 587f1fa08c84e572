package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/admin-lite-gateway/internal"
	"github.com/frahmantamala/admin-lite-gateway/pkg/logger"
)

type rateBucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter applies a fixed-window per-client limit across the admin-lite
// subtree. Counters live in memory only; multi-instance deployments get an
// effective limit of n*limit, which is acceptable for an admin surface.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
	logger  *slog.Logger
	stop    chan struct{}
	once    sync.Once
}

func NewRateLimiter(cfg internal.RateLimitConfig, lg *slog.Logger) *RateLimiter {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	rl := &RateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   cfg.Limit,
		window:  cfg.Window,
		logger:  lg,
		stop:    make(chan struct{}),
	}
	if rl.enabled() && cfg.Cleanup > 0 {
		go rl.sweep(cfg.Cleanup)
	}
	return rl
}

func (rl *RateLimiter) enabled() bool {
	return rl.limit > 0 && rl.window > 0
}

// Stop terminates the background sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		remaining, resetAt, allowed := rl.take(clientKey(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.Warn("rate limit exceeded", "client", clientKey(r), "path", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(internal.ErrRateLimited.StatusCode)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    internal.ErrRateLimited.StatusCode,
				"message": internal.ErrRateLimited.Message,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take counts one request against the client's current window.
func (rl *RateLimiter) take(key string) (remaining int, resetAt time.Time, allowed bool) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{resetAt: now.Add(rl.window)}
		rl.buckets[key] = b
	}

	if b.count >= rl.limit {
		return 0, b.resetAt, false
	}
	b.count++
	return rl.limit - b.count, b.resetAt, true
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.After(b.resetAt) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// clientKey identifies the caller: the first X-Forwarded-For hop when
// present, otherwise the remote address without its port.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
