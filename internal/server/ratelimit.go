package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rateLimiter is a token-bucket limiter keyed by client, sized in requests
// per minute. A full bucket holds one minute's budget.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute float64
	buckets   map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{perMinute: float64(perMinute), buckets: make(map[string]*bucket)}
}

// allow reports whether a request with key is allowed now and, if not, the
// seconds until the next token.
func (rl *rateLimiter) allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.perMinute <= 0 {
		return true, 0
	}
	now := time.Now()
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{tokens: rl.perMinute, last: now}
		rl.buckets[key] = b
	}
	perSecond := rl.perMinute / 60
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*perSecond, rl.perMinute)
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := int((1-b.tokens)/perSecond + 0.999)
	if wait < 1 {
		wait = 1
	}
	return false, wait
}

// middleware enforces the limiter per client IP, answering 429 with a
// Retry-After hint when the budget is exhausted.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := rl.allow(clientIP(r)); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": "rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's address, preferring X-Forwarded-For when a
// proxy sits in front.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
