// Package ratelimit throttles write requests per client IP.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter counts requests per key in fixed windows. Keys that stay idle for
// two cleanup intervals are forgotten.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	limit           int
	span            time.Duration
	cleanupInterval time.Duration

	rejected int64
}

type window struct {
	start time.Time
	seen  time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	// Requests is the number of requests a key may make per Window.
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 60 writes per minute.
func DefaultConfig() Config {
	return Config{
		Requests:        60,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup loop. Zero fields take
// their DefaultConfig values.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.Requests <= 0 {
		config.Requests = def.Requests
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		windows:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           config.Requests,
		span:            config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow records a request for key. When the key is over its limit it returns
// false and the time left until its window resets.
func (rl *Limiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.span {
		rl.windows[key] = &window{start: now, seen: now, count: 1}
		return true, 0
	}

	w.seen = now
	w.count++
	if w.count > rl.limit {
		atomic.AddInt64(&rl.rejected, 1)
		return false, w.start.Add(rl.span).Sub(now)
	}
	return true, 0
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.forgetIdle()
		case <-rl.stopCleanup:
			return
		}
	}
}

// forgetIdle drops keys not seen for two cleanup intervals and returns how
// many it dropped.
func (rl *Limiter) forgetIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.cleanupInterval)
	dropped := 0
	for key, w := range rl.windows {
		if w.seen.Before(cutoff) {
			delete(rl.windows, key)
			dropped++
		}
	}
	return dropped
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics is a point-in-time view of the limiter.
type Metrics struct {
	Rejected    int64
	TrackedKeys int
}

func (rl *Limiter) Metrics() Metrics {
	rl.mu.Lock()
	tracked := len(rl.windows)
	rl.mu.Unlock()

	return Metrics{
		Rejected:    atomic.LoadInt64(&rl.rejected),
		TrackedKeys: tracked,
	}
}

// IsMutating reports whether the method changes server state. Only those
// requests count against the limit.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Middleware limits mutating requests per key(r). Rejections carry a
// Retry-After header in whole seconds; onLimit writes the body, nil writes a
// plain 429.
func (rl *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.Allow(key(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}

func retrySeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
