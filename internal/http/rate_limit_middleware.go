package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// limiterSweepInterval controls how often expired fixed windows are evicted
// from the in-memory limiter.
const limiterSweepInterval = 5 * time.Minute

// RateLimiter throttles dashboard, preview and runner traffic with fixed
// windows. Keys carry a class prefix ("user:", "ip:", "runner:") so limits
// apply per caller, not globally.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// bucket is one caller's fixed window.
type bucket struct {
	count     int
	windowEnd time.Time
}

// memoryLimiter is the single-instance default. Deployments that scale the
// api horizontally configure the Redis limiter instead.
type memoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]bucket
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryRateLimiter builds an in-process limiter and starts its sweeper.
func NewMemoryRateLimiter() RateLimiter {
	l := &memoryLimiter{
		buckets: make(map[string]bucket),
		stopCh:  make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *memoryLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.windowEnd) {
		b = bucket{count: 1, windowEnd: now.Add(window)}
		l.buckets[key] = b
		return rateDecision{allowed: true, count: b.count, windowEnd: b.windowEnd}
	}
	if b.count >= limit {
		return rateDecision{allowed: false, count: b.count, windowEnd: b.windowEnd}
	}
	b.count++
	l.buckets[key] = b
	return rateDecision{allowed: true, count: b.count, windowEnd: b.windowEnd}
}

func (l *memoryLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictExpired(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *memoryLimiter) evictExpired(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.After(b.windowEnd) {
			delete(l.buckets, key)
		}
	}
}

func (l *memoryLimiter) Close() {
	l.once.Do(func() {
		close(l.stopCh)
	})
}

// withRateLimit throttles next under the given per-route limit. Unauthenticated
// callers fall back to per-IP keys so preview traffic is still bounded.
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

// handlerAuthRate stacks authentication under a per-user rate limit, the
// combination every dashboard route uses.
func (r *Router) handlerAuthRate(route string, limit int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.withRateLimit(route, limit, window, r.rateLimitKeyUser, next))
}

func (r *Router) rateLimitKeyUser(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.UserID != "" {
		return "user:" + info.UserID
	}
	return ""
}

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

// rateMetricKey reduces a limiter key to its class prefix so metric labels
// stay low-cardinality.
func rateMetricKey(key string) string {
	if key == "" {
		return "unknown"
	}
	if idx := strings.IndexRune(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
