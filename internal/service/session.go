package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/audit"
	"github.com/absher-demo/portal-server-go/internal/database"
	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/repository"
	"github.com/absher-demo/portal-server-go/internal/util"
	"github.com/absher-demo/portal-server-go/internal/voice"
)

// LoginResult pairs the stored session with the raw token handed to
// the browser. Only the hash is persisted.
type LoginResult struct {
	Session *model.Session
	Token   string
}

type backendAuth interface {
	Login(ctx context.Context, username, password string) (*gateway.LoginResult, error)
}

// txRunner runs a function inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type SessionService struct {
	sessionRepo    repository.SessionRepository
	transcriptRepo repository.TranscriptRepository
	tx             txRunner
	backend        backendAuth
	recorders      *voice.Registry
	player         *voice.Player
	workflow       *ActionWorkflow
	secret         string
	ttl            time.Duration
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	transcriptRepo repository.TranscriptRepository,
	tx txRunner,
	backend backendAuth,
	recorders *voice.Registry,
	player *voice.Player,
	workflow *ActionWorkflow,
	secret string,
	ttl time.Duration,
) *SessionService {
	return &SessionService{
		sessionRepo:    sessionRepo,
		transcriptRepo: transcriptRepo,
		tx:             tx,
		backend:        backend,
		recorders:      recorders,
		player:         player,
		workflow:       workflow,
		secret:         secret,
		ttl:            ttl,
	}
}

// hashToken keys the stored hash on the server secret so a leaked
// database row is not enough to forge a cookie.
func (s *SessionService) hashToken(token string) string {
	return util.HmacSHA256(s.secret, token)
}

// Login authenticates against the backend and mints a portal session.
// The backend owns the credentials; this layer only stores the issued
// identity.
func (s *SessionService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	identity, err := s.backend.Login(ctx, username, password)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeAuthFailed) {
			audit.Log(ctx, audit.Event{
				Type:    audit.EventLoginFailure,
				Details: map[string]interface{}{"username": username},
			})
		}
		return nil, err
	}

	// An identity with either field missing can never become a valid
	// session, so refuse it up front.
	if identity.UserID == "" || identity.Name == "" {
		return nil, apperrors.RequestRejected("Backend returned an incomplete identity")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		TokenHash: s.hashToken(token),
		UserID:    identity.UserID,
		UserName:  identity.Name,
		ExpiresAt: time.Now().Add(s.ttl),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventLoginSuccess,
		SessionID: session.ID,
		UserID:    identity.UserID,
	})
	log.Info().
		Str("sessionId", session.ID).
		Str("userId", identity.UserID).
		Time("expiresAt", session.ExpiresAt).
		Msg("session created")

	return &LoginResult{Session: session, Token: token}, nil
}

// Current resolves a browser token to its session. A partial row, with
// either identity field empty, is treated as logged out and cleared on
// the spot; calling this again afterwards is a harmless miss.
func (s *SessionService) Current(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByTokenHash(ctx, s.hashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Partial() {
		log.Warn().Str("sessionId", session.ID).Msg("clearing partial session")
		s.clear(ctx, session.ID)
		return nil, nil
	}

	// Sliding expiry: refresh the window once it is half spent, so an
	// active user never gets logged out mid-conversation.
	if time.Until(session.ExpiresAt) < s.ttl/2 {
		expiresAt := time.Now().Add(s.ttl)
		if err := s.sessionRepo.Touch(ctx, session.ID, expiresAt); err != nil {
			log.Warn().Err(err).Str("sessionId", session.ID).Msg("session touch failed")
		} else {
			session.ExpiresAt = expiresAt
		}
	}
	return session, nil
}

// Logout tears the session down completely: transcript, in-flight
// action, recorder and playback all go with it.
func (s *SessionService) Logout(ctx context.Context, session *model.Session) error {
	messages, err := s.transcriptRepo.CountBySession(ctx, session.ID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("transcript count failed")
	}

	if err := s.clear(ctx, session.ID); err != nil {
		return apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventLogout,
		SessionID: session.ID,
		UserID:    session.UserID,
		Details:   map[string]interface{}{"messages": messages},
	})
	log.Info().
		Str("sessionId", session.ID).
		Str("userId", session.UserID).
		Msg("session ended")
	return nil
}

func (s *SessionService) clear(ctx context.Context, sessionID string) error {
	s.workflow.Clear(sessionID)
	s.recorders.Drop(sessionID)
	s.player.Stop(sessionID)

	// Transcript and session row go together or not at all.
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.transcriptRepo.WithTx(tx).DeleteBySession(ctx, sessionID); err != nil {
			return fmt.Errorf("delete transcript: %w", err)
		}
		if err := s.sessionRepo.WithTx(tx).Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}
