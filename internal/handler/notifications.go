package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/absher-demo/portal-server-go/internal/middleware"
	"github.com/absher-demo/portal-server-go/internal/service"
)

type NotificationsHandler struct {
	notifications  *service.NotificationService
	proactiveLimit *middleware.IPRateLimitMiddleware
}

func NewNotificationsHandler(
	notifications *service.NotificationService,
	proactiveLimit *middleware.IPRateLimitMiddleware,
) *NotificationsHandler {
	return &NotificationsHandler{
		notifications:  notifications,
		proactiveLimit: proactiveLimit,
	}
}

func (h *NotificationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.With(h.proactiveLimit.Handler).Post("/proactive", h.TriggerProactive)

	return r
}

// GET /api/notifications
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	notifications, err := h.notifications.List(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// POST /api/notifications/proactive
func (h *NotificationsHandler) TriggerProactive(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	notifications, err := h.notifications.TriggerProactive(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}
