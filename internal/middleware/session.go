package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/audit"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/httputil"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/service"
)

const (
	SessionCookie = "portal_session"
	SessionMaxAge = 24 * time.Hour
)

type contextKey string

const SessionContextKey contextKey = "session"

func GetSession(ctx context.Context) *model.Session {
	if session, ok := ctx.Value(SessionContextKey).(*model.Session); ok {
		return session
	}
	return nil
}

// SessionMiddleware authenticates requests by portal session cookie.
// Partial or expired sessions read as logged out, so the guard answers
// 401 for them like any missing cookie.
type SessionMiddleware struct {
	sessions *service.SessionService
}

func NewSessionMiddleware(sessions *service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Not logged in"))
			return
		}

		session, err := m.sessions.Current(r.Context(), cookie.Value)
		if err != nil {
			log.Error().Err(err).Msg("session middleware: lookup failed")
			httputil.WriteError(w, err)
			return
		}
		if session == nil {
			// A cookie was presented but resolved to nothing: expired,
			// partial, or forged.
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			ClearSessionCookie(w, SessionCookie, "/")
			httputil.WriteError(w, apperrors.Unauthorized("Not logged in"))
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SetSessionCookie(w http.ResponseWriter, name, token string, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     path,
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   path,
		MaxAge: -1,
	})
}
