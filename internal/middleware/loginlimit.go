package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/absher-demo/portal-server-go/internal/audit"
	"github.com/absher-demo/portal-server-go/internal/httputil"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
)

const (
	loginMaxAttempts    = 5
	loginWindowDuration = time.Minute
	loginSweepPeriod    = 5 * time.Minute
)

type loginWindow struct {
	count     int
	startedAt time.Time
}

// LoginRateLimiter throttles credential attempts per client IP. It is
// deliberately in-memory: login abuse protection should keep working
// even when redis is down, and losing counters on restart is fine.
type LoginRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*loginWindow
	lastSweep time.Time
}

func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{
		windows:   make(map[string]*loginWindow),
		lastSweep: time.Now(),
	}
}

// sweep drops windows that have lapsed. Called with mu held.
func (l *LoginRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < loginSweepPeriod {
		return
	}
	l.lastSweep = now

	for ip, w := range l.windows {
		if now.Sub(w.startedAt) > loginWindowDuration {
			delete(l.windows, ip)
		}
	}
}

func (l *LoginRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.startedAt) > loginWindowDuration {
		l.windows[ip] = &loginWindow{count: 1, startedAt: now}
		return true
	}

	if w.count >= loginMaxAttempts {
		return false
	}

	w.count++
	return true
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP middleware has already rewritten RemoteAddr from the
		// proxy headers.
		if !l.allow(r.RemoteAddr) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
