package service

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/voice"
)

type transcribeBackend interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// VoiceCaptureService mirrors the browser's recording lifecycle and
// turns a finished capture into text via the backend's transcriber.
type VoiceCaptureService struct {
	recorders *voice.Registry
	backend   transcribeBackend
}

func NewVoiceCaptureService(recorders *voice.Registry, backend transcribeBackend) *VoiceCaptureService {
	return &VoiceCaptureService{recorders: recorders, backend: backend}
}

// Begin starts a capture for the session.
func (s *VoiceCaptureService) Begin(sessionID string) error {
	return s.recorders.ForSession(sessionID).Begin()
}

// Permission reports the browser's microphone permission result.
func (s *VoiceCaptureService) Permission(sessionID string, granted bool) error {
	return s.recorders.ForSession(sessionID).Acquired(granted)
}

// Chunk appends one audio chunk to the session's capture.
func (s *VoiceCaptureService) Chunk(sessionID string, data []byte) error {
	return s.recorders.ForSession(sessionID).Feed(data)
}

// State exposes the recorder's current state.
func (s *VoiceCaptureService) State(sessionID string) model.RecorderState {
	return s.recorders.ForSession(sessionID).State()
}

// Cancel discards the capture.
func (s *VoiceCaptureService) Cancel(sessionID string) {
	s.recorders.ForSession(sessionID).Abort()
}

// Finish ends the capture and transcribes it. An empty capture or an
// empty transcription both mean nothing was recognized, and nothing is
// forwarded to the assistant.
func (s *VoiceCaptureService) Finish(ctx context.Context, sessionID string) (string, error) {
	audio, err := s.recorders.ForSession(sessionID).Finish()
	if err != nil {
		return "", err
	}

	text, err := s.backend.Transcribe(ctx, "recording.webm", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	if text == "" {
		log.Debug().Str("sessionId", sessionID).Msg("transcription came back empty")
		return "", apperrors.NothingRecognized()
	}

	log.Info().
		Str("sessionId", sessionID).
		Int("audioBytes", len(audio)).
		Msg("voice capture transcribed")
	return text, nil
}
