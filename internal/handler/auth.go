package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/middleware"
	"github.com/absher-demo/portal-server-go/internal/service"
)

type AuthHandler struct {
	sessions     *service.SessionService
	guard        *middleware.SessionMiddleware
	loginLimiter *middleware.LoginRateLimiter
	isProduction bool
}

func NewAuthHandler(
	sessions *service.SessionService,
	guard *middleware.SessionMiddleware,
	loginLimiter *middleware.LoginRateLimiter,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		guard:        guard,
		loginLimiter: loginLimiter,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginLimiter.Handler).Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Handler)
		r.Post("/logout", h.Logout)
		r.Get("/session", h.CurrentSession)
	})

	return r
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Username == "" {
		writeError(w, apperrors.MissingRequired("username"))
		return
	}
	if req.Password == "" {
		writeError(w, apperrors.MissingRequired("password"))
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetSessionCookie(w, middleware.SessionCookie, result.Token, "/", h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   result.Session.UserID,
		"userName": result.Session.UserName,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	if err := h.sessions.Logout(r.Context(), session); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("logout failed")
		writeError(w, err)
		return
	}

	middleware.ClearSessionCookie(w, middleware.SessionCookie, "/")
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// GET /api/auth/session
func (h *AuthHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   session.UserID,
		"userName": session.UserName,
	})
}
