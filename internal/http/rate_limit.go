package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const rateLimiterSweepInterval = 5 * time.Minute

// RatePolicy caps requests per key within a fixed window.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

func (p RatePolicy) window() time.Duration {
	if p.Window <= 0 {
		return time.Minute
	}
	return p.Window
}

// RateDecision is the outcome of a single limiter check.
type RateDecision struct {
	Allowed bool
	Count   int
	Reset   time.Time
}

// RateLimiter counts requests per key. Implementations fail open when their
// backing store is unreachable.
type RateLimiter interface {
	Allow(ctx context.Context, key string, policy RatePolicy) RateDecision
	Close()
}

type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]rateWindow
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type rateWindow struct {
	count int
	reset time.Time
}

// NewMemoryRateLimiter returns an in-process limiter for single-instance deployments.
func NewMemoryRateLimiter() RateLimiter {
	rl := newMemoryRateLimiter(time.Now)
	go rl.sweep(rateLimiterSweepInterval)
	return rl
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	return &memoryRateLimiter{
		windows: make(map[string]rateWindow),
		now:     now,
		stop:    make(chan struct{}),
	}
}

func (rl *memoryRateLimiter) Allow(_ context.Context, key string, policy RatePolicy) RateDecision {
	if policy.Limit <= 0 {
		return RateDecision{Allowed: true}
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.reset) {
		w = rateWindow{reset: now.Add(policy.window())}
	}
	// Rejected attempts count too; the reset time never slides.
	w.count++
	rl.windows[key] = w
	return RateDecision{Allowed: w.count <= policy.Limit, Count: w.count, Reset: w.reset}
}

func (rl *memoryRateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.expire(rl.now())
		case <-rl.stop:
			return
		}
	}
}

func (rl *memoryRateLimiter) expire(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if !now.Before(w.reset) {
			delete(rl.windows, key)
		}
	}
}

func (rl *memoryRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// withRateLimit rejects callers over policy with 429 and always reports the
// X-RateLimit-* headers.
func (r *Router) withRateLimit(route string, policy RatePolicy, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if policy.Limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		key := route + "|" + rateLimitKeyIP(req)
		decision := r.limiter.Allow(req.Context(), key, policy)
		setRateHeaders(w.Header(), policy, decision)
		if !decision.Allowed {
			r.metrics.recordRateLimitHit(route, "ip")
			if !decision.Reset.IsZero() {
				retry := int(time.Until(decision.Reset).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
			writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}
		next(w, req)
	}
}

func setRateHeaders(h http.Header, policy RatePolicy, decision RateDecision) {
	remaining := policy.Limit - decision.Count
	if remaining < 0 {
		remaining = 0
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.Reset.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
	}
}

// rateLimitKeyIP keys on the socket peer, never on X-Forwarded-For.
func rateLimitKeyIP(req *http.Request) string {
	addr := strings.TrimSpace(req.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
