package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/repository"
)

// TranscriptService owns the append-only conversation record. Turns
// are never edited or reordered after insert; a failed assistant call
// still produces a turn, carrying the error text instead.
type TranscriptService struct {
	repo repository.TranscriptRepository
}

func NewTranscriptService(repo repository.TranscriptRepository) *TranscriptService {
	return &TranscriptService{repo: repo}
}

func (s *TranscriptService) List(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	msgs, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msgs, nil
}

func (s *TranscriptService) AppendUser(ctx context.Context, sessionID, text string, imageURL *string) (*model.ChatMessage, error) {
	msg, err := s.repo.Append(ctx, model.AppendMessageParams{
		SessionID: sessionID,
		Author:    model.AuthorUser,
		Text:      text,
		ImageURL:  imageURL,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msg, nil
}

func (s *TranscriptService) AppendAssistant(ctx context.Context, sessionID, text string, action *json.RawMessage) (*model.ChatMessage, error) {
	msg, err := s.repo.Append(ctx, model.AppendMessageParams{
		SessionID:      sessionID,
		Author:         model.AuthorAssistant,
		Text:           text,
		ProposedAction: action,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msg, nil
}

// AppendFailure records a failed assistant exchange as a regular
// assistant turn so the transcript never has a gap where a reply
// should have been.
func (s *TranscriptService) AppendFailure(ctx context.Context, sessionID string, cause error) (*model.ChatMessage, error) {
	text := failureText(cause)
	msg, err := s.repo.Append(ctx, model.AppendMessageParams{
		SessionID: sessionID,
		Author:    model.AuthorAssistant,
		Text:      text,
	})
	if err != nil {
		log.Error().Err(err).
			Str("sessionId", sessionID).
			Msg("could not record failed exchange")
		return nil, apperrors.Database(err)
	}
	return msg, nil
}

func (s *TranscriptService) Find(ctx context.Context, sessionID, messageID string) (*model.ChatMessage, error) {
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if msg == nil || msg.SessionID != sessionID {
		return nil, apperrors.NotFound("message")
	}
	return msg, nil
}

// AttachAudio memoizes the synthesized speech resource for a message.
// Concurrent callers race benignly: whoever loses keeps the winner's
// media ID.
func (s *TranscriptService) AttachAudio(ctx context.Context, msg *model.ChatMessage, mediaID string) (string, error) {
	wrote, err := s.repo.SetAudioMedia(ctx, msg.ID, mediaID)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if wrote {
		return mediaID, nil
	}

	current, err := s.repo.FindByID(ctx, msg.ID)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if current != nil && current.AudioMediaID != nil {
		return *current.AudioMediaID, nil
	}
	return mediaID, nil
}

// failureText maps an exchange failure to the assistant-voice message
// shown in the transcript.
func failureText(err error) string {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeTimeout:
		return "انتهت مهلة الاتصال بالخادم. حاول مرة أخرى."
	case apperrors.ErrCodeNetwork:
		return "تعذر الاتصال بالخادم. تحقق من اتصالك بالإنترنت."
	default:
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Message != "" {
			return appErr.Message
		}
		return "حدث خطأ غير متوقع. حاول مرة أخرى."
	}
}
