package middleware

import (
	"net/http"

	"github.com/absher-demo/portal-server-go/internal/httputil"
	"github.com/absher-demo/portal-server-go/internal/util"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware implements the double-submit cookie pattern. The SPA
// reads the csrf_token cookie and echoes it in X-CSRF-Token on every
// mutating call; the two must match. Safe methods only ensure the
// cookie exists so the first page load primes the token.
type CSRFMiddleware struct {
	isProduction bool
}

func NewCSRFMiddleware(isProduction bool) *CSRFMiddleware {
	return &CSRFMiddleware{isProduction: isProduction}
}

func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			token, err := util.GenerateToken()
			if err != nil {
				httputil.WriteError(w, apperrors.Internal("generate security token").WithCause(err))
				return
			}
			m.setCSRFCookie(w, token)
			cookie = &http.Cookie{Value: token}
		}

		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		headerToken := r.Header.Get(CSRFHeaderName)
		if headerToken == "" {
			httputil.WriteError(w, apperrors.PermissionDenied("Missing CSRF token"))
			return
		}
		if !util.ConstantTimeEqual(cookie.Value, headerToken) {
			httputil.WriteError(w, apperrors.PermissionDenied("Invalid CSRF token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *CSRFMiddleware) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: false, // the SPA must read it to echo the header
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}
