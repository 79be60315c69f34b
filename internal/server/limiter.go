package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/qrtune/internal/shared"
	"golang.org/x/time/rate"
)

const limiterIdle = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter rate limits /login per client address.
type LoginLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLoginLimiter returns a limiter allowing cfg.LoginPerMinute logins per client.
// A non-positive rate disables limiting.
func NewLoginLimiter(cfg shared.RateLimitConfig) *LoginLimiter {
	l := &LoginLimiter{visitors: make(map[string]*visitor), now: time.Now}
	if cfg.LoginPerMinute <= 0 {
		return l
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.LoginPerMinute
	}
	l.limit = rate.Every(time.Minute / time.Duration(cfg.LoginPerMinute))
	l.burst = burst
	return l
}

// Enabled reports whether limiting is active.
func (l *LoginLimiter) Enabled() bool {
	return l.limit > 0
}

// Allow reports whether key may proceed now.
func (l *LoginLimiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	now := l.now()
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Prune forgets clients not seen for idle.
func (l *LoginLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *LoginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Run prunes idle clients every minute until ctx is done.
func (l *LoginLimiter) Run(ctx context.Context) {
	if !l.Enabled() {
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune(limiterIdle)
		}
	}
}

// Middleware rejects over-limit clients with 429.
func (l *LoginLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(60))
				writeError(w, http.StatusTooManyRequests, "too_many_requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
