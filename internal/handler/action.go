package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/middleware"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/service"
)

type ActionHandler struct {
	workflow *service.ActionWorkflow
}

func NewActionHandler(workflow *service.ActionWorkflow) *ActionHandler {
	return &ActionHandler{workflow: workflow}
}

func (h *ActionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Review)
	r.Post("/accept", h.Accept)
	r.Post("/reject", h.Reject)
	r.Post("/cancel", h.Cancel)
	r.Post("/payment", h.Pay)

	return r
}

// GET /api/action
func (h *ActionHandler) Review(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	review, err := h.workflow.Review(session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// POST /api/action/accept
func (h *ActionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	review, err := h.workflow.Accept(session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// POST /api/action/reject
func (h *ActionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	result, err := h.workflow.Reject(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/action/cancel
func (h *ActionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	if err := h.workflow.Cancel(r.Context(), session); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// POST /api/action/payment
func (h *ActionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	var card model.CardDetails
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	outcome, err := h.workflow.Pay(r.Context(), session, card)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
