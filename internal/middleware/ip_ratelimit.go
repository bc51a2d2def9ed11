package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/absher-demo/portal-server-go/internal/httputil"
	"github.com/absher-demo/portal-server-go/internal/service"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
)

// IPRateLimitMiddleware throttles an endpoint per client IP through the
// shared redis limiter. The proactive notification trigger uses it so
// an anonymous-adjacent endpoint cannot be hammered from one address.
type IPRateLimitMiddleware struct {
	limiter *service.RateLimiter
	limit   int
	window  time.Duration
	prefix  string
}

func NewIPRateLimitMiddleware(limiter *service.RateLimiter, limit int, window time.Duration, prefix string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("ip:%s:%s", m.prefix, r.RemoteAddr)
		allowed, _, resetAt := m.limiter.CheckLimit(r.Context(), key, m.limit, m.window)

		if !allowed {
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secondsLeft))
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
