package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/middleware"
	"github.com/absher-demo/portal-server-go/internal/service"
)

type ChatHandler struct {
	chat       *service.ChatService
	transcript *service.TranscriptService
	rateLimit  *middleware.SessionRateLimitMiddleware
}

func NewChatHandler(
	chat *service.ChatService,
	transcript *service.TranscriptService,
	rateLimit *middleware.SessionRateLimitMiddleware,
) *ChatHandler {
	return &ChatHandler{
		chat:       chat,
		transcript: transcript,
		rateLimit:  rateLimit,
	}
}

func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/messages", h.ListMessages)
	r.With(h.rateLimit.Handler).Post("/messages", h.SendMessage)
	r.Post("/photo", h.UploadPhoto)

	return r
}

// GET /api/chat/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	messages, err := h.transcript.List(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// POST /api/chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	exchange, err := h.chat.Send(r.Context(), session, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	writeExchange(w, exchange)
}

// POST /api/chat/photo
func (h *ChatHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.MissingRequired("file"))
		return
	}
	defer file.Close()

	exchange, err := h.chat.SendPhoto(
		r.Context(), session,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeExchange(w, exchange)
}

// writeExchange renders a chat exchange, exposing the failure code
// alongside the substituted assistant turn when the backend call
// failed.
func writeExchange(w http.ResponseWriter, exchange *service.ChatExchange) {
	body := map[string]any{
		"userMessage":      exchange.UserMessage,
		"assistantMessage": exchange.AssistantMessage,
		"actionProposed":   exchange.ActionProposed,
	}
	if exchange.Err != nil {
		body["error"] = map[string]string{
			"code":    string(apperrors.GetCode(exchange.Err)),
			"message": apperrors.UserMessage(exchange.Err),
		}
	}
	writeJSON(w, http.StatusOK, body)
}
