package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter decides whether a keyed request fits its window. Two
// implementations exist: in-process (default) and Redis-backed for
// multi-replica deployments.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// memoryRateLimiter is a fixed-window counter per key. Expired windows are
// swept in the background so the map does not grow with one-off callers.
type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowState
	stopCh  chan struct{}
	once    sync.Once
}

type windowState struct {
	count int
	ends  time.Time
}

const memorySweepEvery = 5 * time.Minute

// NewMemoryRateLimiter returns the in-process limiter.
func NewMemoryRateLimiter() RateLimiter {
	rl := &memoryRateLimiter{
		windows: make(map[string]*windowState),
		stopCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	state, ok := rl.windows[key]
	if !ok || now.After(state.ends) {
		state = &windowState{count: 1, ends: now.Add(window)}
		rl.windows[key] = state
		return rateDecision{allowed: true, count: 1, windowEnd: state.ends}
	}
	if state.count >= limit {
		return rateDecision{allowed: false, count: state.count, windowEnd: state.ends}
	}
	state.count++
	return rateDecision{allowed: true, count: state.count, windowEnd: state.ends}
}

func (rl *memoryRateLimiter) sweep() {
	ticker := time.NewTicker(memorySweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, state := range rl.windows {
				if now.After(state.ends) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}

// withRateLimit guards a route with a per-key window. Denied requests get a
// 429 and are counted in the rate-limit metric.
func (r *Router) withRateLimit(route string, limit int, window time.Duration, keyFn func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		key := keyFn(req)
		if key == "" {
			key = rateLimitKeyIP(req)
		}
		decision := r.limiter.Allow(key, limit, window)
		r.applyRateHeaders(w, limit, decision)
		if !decision.allowed {
			label := route
			if label == "" {
				label = req.URL.Path
			}
			r.recordRateLimitHit(label, rateMetricKey(key))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

// rateLimitKeyIP keys the window on the caller's address, which is all the
// unauthenticated webhook exposes.
func rateLimitKeyIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// rateMetricKey strips the key down to its kind so metric cardinality stays
// bounded.
func rateMetricKey(key string) string {
	if key == "" {
		return "unknown"
	}
	if idx := strings.IndexRune(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
