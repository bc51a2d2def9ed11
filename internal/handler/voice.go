package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/middleware"
	"github.com/absher-demo/portal-server-go/internal/service"
	"github.com/absher-demo/portal-server-go/internal/util"
)

// maxChunkSize caps one pushed audio chunk.
const maxChunkSize = 1 << 20

type VoiceHandler struct {
	capture *service.VoiceCaptureService
	chat    *service.ChatService
	speech  *service.SpeechService
}

func NewVoiceHandler(
	capture *service.VoiceCaptureService,
	chat *service.ChatService,
	speech *service.SpeechService,
) *VoiceHandler {
	return &VoiceHandler{
		capture: capture,
		chat:    chat,
		speech:  speech,
	}
}

func (h *VoiceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/state", h.State)
	r.Post("/start", h.Start)
	r.Post("/permission", h.Permission)
	r.Post("/chunk", h.Chunk)
	r.Post("/stop", h.Stop)
	r.Post("/cancel", h.Cancel)

	r.Post("/speech/{messageID}", h.PlaySpeech)
	r.Post("/speech/stop", h.StopSpeech)

	return r
}

// GET /api/voice/state
func (h *VoiceHandler) State(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"state": string(h.capture.State(session.ID)),
	})
}

// POST /api/voice/start
func (h *VoiceHandler) Start(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	if err := h.capture.Begin(session.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.capture.State(session.ID))})
}

// POST /api/voice/permission
func (h *VoiceHandler) Permission(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	var req struct {
		Granted bool `json:"granted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.capture.Permission(session.ID, req.Granted); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.capture.State(session.ID))})
}

// POST /api/voice/chunk
func (h *VoiceHandler) Chunk(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	data, err := io.ReadAll(io.LimitReader(r.Body, maxChunkSize))
	if err != nil {
		writeError(w, apperrors.ValidationError("Could not read audio chunk"))
		return
	}

	if err := h.capture.Chunk(session.ID, data); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.capture.State(session.ID))})
}

// POST /api/voice/stop
//
// Ends the capture, transcribes it and relays the recognized text as a
// regular chat turn. When nothing was recognized, no turn is sent.
func (h *VoiceHandler) Stop(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	text, err := h.capture.Finish(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	exchange, err := h.chat.Send(r.Context(), session, text)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{
		"recognizedText":   text,
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

// POST /api/voice/cancel
func (h *VoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	h.capture.Cancel(session.ID)
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.capture.State(session.ID))})
}

// POST /api/voice/speech/{messageID}
//
// Streams synthesized speech for an assistant message. Starting a new
// playback stops whatever the session was playing.
func (h *VoiceHandler) PlaySpeech(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	messageID := chi.URLParam(r, "messageID")
	if !util.IsValidUUID(messageID) {
		writeError(w, apperrors.InvalidInput("messageID", "must be a UUID"))
		return
	}

	stream, err := h.speech.Play(r.Context(), session, messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer h.speech.Finish(stream.Playback)

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set("Cache-Control", "no-store")

	if _, err := io.Copy(w, stream.Audio); err != nil {
		log.Debug().Err(err).
			Str("sessionId", session.ID).
			Str("messageId", messageID).
			Msg("playback stream ended early")
	}
}

// POST /api/voice/speech/stop
func (h *VoiceHandler) StopSpeech(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	stopped := h.speech.Stop(session.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}
