package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/httputil"
	"github.com/absher-demo/portal-server-go/internal/service"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
)

const sessionRateLimitWindow = time.Minute

// SessionRateLimitMiddleware throttles chat exchanges per session, so
// one noisy tab cannot flood the assistant backend.
type SessionRateLimitMiddleware struct {
	limiter *service.RateLimiter
	limit   int
}

func NewSessionRateLimitMiddleware(limiter *service.RateLimiter, limit int) *SessionRateLimitMiddleware {
	return &SessionRateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
	}
}

func (m *SessionRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := GetSession(r.Context())
		if session == nil || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, resetAt := m.limiter.CheckLimit(
			r.Context(), "session:"+session.ID, m.limit, sessionRateLimitWindow,
		)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			log.Warn().Str("sessionId", session.ID).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
