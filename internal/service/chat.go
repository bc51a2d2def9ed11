package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	"github.com/absher-demo/portal-server-go/internal/model"
)

// ChatExchange is the pair of transcript turns one send produces. The
// assistant turn is present even when the backend call failed; Err
// carries the failure so callers can report it alongside.
type ChatExchange struct {
	UserMessage      *model.ChatMessage `json:"userMessage"`
	AssistantMessage *model.ChatMessage `json:"assistantMessage"`
	ActionProposed   bool               `json:"actionProposed"`
	Err              error              `json:"-"`
}

// ChatService relays user turns to the backend assistant and keeps the
// transcript consistent around each exchange. One exchange per session
// may be in flight at a time.
type ChatService struct {
	backend    *gateway.Client
	transcript *TranscriptService
	workflow   *ActionWorkflow

	mu       sync.Mutex
	inFlight map[string]bool // sessionID -> exchange in progress
}

func NewChatService(backend *gateway.Client, transcript *TranscriptService, workflow *ActionWorkflow) *ChatService {
	return &ChatService{
		backend:    backend,
		transcript: transcript,
		workflow:   workflow,
		inFlight:   make(map[string]bool),
	}
}

// Send relays one user turn. The user message is committed before the
// backend is called, so the transcript keeps the turn even when the
// assistant never answers. A failed exchange substitutes an assistant
// turn describing the failure.
func (s *ChatService) Send(ctx context.Context, session *model.Session, text string) (*ChatExchange, error) {
	if text == "" {
		return nil, apperrors.MissingRequired("message")
	}

	if !s.begin(session.ID) {
		return nil, apperrors.Busy("message exchange")
	}
	defer s.end(session.ID)

	userMsg, err := s.transcript.AppendUser(ctx, session.ID, text, nil)
	if err != nil {
		return nil, err
	}

	result, err := s.backend.SendChat(ctx, session.UserID, text)
	if err != nil {
		return s.failedExchange(ctx, session.ID, userMsg, err)
	}

	var actionRaw = rawAction(result.ProposedAction)
	proposed := false
	if result.ProposedAction != nil {
		proposed = s.workflow.Propose(session.ID, *result.ProposedAction)
		if !proposed {
			// Dropped proposal: keep the reply text, strip the action
			// so the client never renders a review card for it.
			actionRaw = nil
		}
	}

	assistantMsg, err := s.transcript.AppendAssistant(ctx, session.ID, result.Reply, actionRaw)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("sessionId", session.ID).
		Str("messageId", assistantMsg.ID).
		Bool("actionProposed", proposed).
		Msg("chat exchange completed")

	return &ChatExchange{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		ActionProposed:   proposed,
	}, nil
}

// SendPhoto uploads an ID photo and records it as a user turn with the
// served media URL. Validation failures surface before anything is
// written.
func (s *ChatService) SendPhoto(ctx context.Context, session *model.Session, filename, contentType string, size int64, file io.Reader) (*ChatExchange, error) {
	if !s.begin(session.ID) {
		return nil, apperrors.Busy("message exchange")
	}
	defer s.end(session.ID)

	upload, err := s.backend.UploadIDPhoto(ctx, session.UserID, filename, contentType, size, file)
	if err != nil {
		return nil, err
	}

	imageURL := "/api/media/" + upload.MediaID
	userMsg, err := s.transcript.AppendUser(ctx, session.ID, "", &imageURL)
	if err != nil {
		return nil, err
	}

	reply := "تم استلام صورة الهوية بنجاح."
	assistantMsg, err := s.transcript.AppendAssistant(ctx, session.ID, reply, nil)
	if err != nil {
		return nil, err
	}

	return &ChatExchange{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *ChatService) failedExchange(ctx context.Context, sessionID string, userMsg *model.ChatMessage, cause error) (*ChatExchange, error) {
	assistantMsg, appendErr := s.transcript.AppendFailure(ctx, sessionID, cause)
	if appendErr != nil {
		return nil, appendErr
	}
	return &ChatExchange{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Err:              cause,
	}, nil
}

func (s *ChatService) begin(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[sessionID] {
		return false
	}
	s.inFlight[sessionID] = true
	return true
}

func (s *ChatService) end(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}

func rawAction(action *model.ProposedAction) *json.RawMessage {
	if action == nil {
		return nil
	}
	return action.Raw()
}
