package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/model"
	redisclient "github.com/absher-demo/portal-server-go/internal/redis"
	"github.com/absher-demo/portal-server-go/internal/voice"
)

const speechContentType = "audio/mpeg"

type speechBackend interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, string, error)
}

// SpeechStream is one playable audio stream. Reading past the
// playback's cancellation returns the playback context's error.
type SpeechStream struct {
	Audio       io.Reader
	ContentType string
	Playback    *voice.Playback
}

// SpeechService synthesizes assistant turns into speech. Audio is
// keyed by a per-message media id: the first playback synthesizes and
// caches, later playbacks reuse the cached bytes. Playback is
// exclusive per session.
type SpeechService struct {
	backend    speechBackend
	transcript *TranscriptService
	redis      *redisclient.Client
	player     *voice.Player
	cacheTTL   time.Duration
}

func NewSpeechService(
	backend speechBackend,
	transcript *TranscriptService,
	redisClient *redisclient.Client,
	player *voice.Player,
	cacheTTL time.Duration,
) *SpeechService {
	return &SpeechService{
		backend:    backend,
		transcript: transcript,
		redis:      redisClient,
		player:     player,
		cacheTTL:   cacheTTL,
	}
}

// Play returns a speech stream for an assistant message, stopping
// whatever the session was playing before.
func (s *SpeechService) Play(ctx context.Context, session *model.Session, messageID string) (*SpeechStream, error) {
	msg, err := s.transcript.Find(ctx, session.ID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Author != model.AuthorAssistant {
		return nil, apperrors.InvalidInput("messageId", "only assistant messages can be played")
	}
	if msg.Text == "" {
		return nil, apperrors.NothingRecognized()
	}

	audio, err := s.resolveAudio(ctx, msg)
	if err != nil {
		return nil, err
	}

	playback := s.player.Start(ctx, session.ID, messageID)
	return &SpeechStream{
		Audio:       newCancellableReader(playback.Context(), bytes.NewReader(audio)),
		ContentType: speechContentType,
		Playback:    playback,
	}, nil
}

// Stop halts the session's current playback.
func (s *SpeechService) Stop(sessionID string) bool {
	return s.player.Stop(sessionID)
}

// Finish releases a playback once its stream has been written out.
func (s *SpeechService) Finish(playback *voice.Playback) {
	s.player.Finish(playback)
}

// resolveAudio returns the message's speech bytes, synthesizing and
// caching them on first use.
func (s *SpeechService) resolveAudio(ctx context.Context, msg *model.ChatMessage) ([]byte, error) {
	if msg.AudioMediaID != nil {
		cached, err := s.redis.Get(ctx, redisclient.SpeechKey(*msg.AudioMediaID)).Bytes()
		if err == nil {
			return cached, nil
		}
		if err != goredis.Nil {
			log.Warn().Err(err).
				Str("mediaId", *msg.AudioMediaID).
				Msg("speech cache read failed")
		}
		// Cache expired; fall through and synthesize again under the
		// same media id.
		return s.synthesize(ctx, msg, *msg.AudioMediaID)
	}

	return s.synthesize(ctx, msg, uuid.NewString())
}

func (s *SpeechService) synthesize(ctx context.Context, msg *model.ChatMessage, mediaID string) ([]byte, error) {
	stream, _, err := s.backend.Synthesize(ctx, msg.Text)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	if err != nil {
		return nil, apperrors.Network(err)
	}
	if len(audio) == 0 {
		return nil, apperrors.NothingRecognized()
	}

	if msg.AudioMediaID == nil {
		// First synthesis for this message; the media id may lose a
		// race, in which case we cache under the winner's id.
		mediaID, err = s.transcript.AttachAudio(ctx, msg, mediaID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.redis.Set(ctx, redisclient.SpeechKey(mediaID), audio, s.cacheTTL).Err(); err != nil {
		log.Warn().Err(err).
			Str("mediaId", mediaID).
			Msg("speech cache write failed")
	}

	log.Debug().
		Str("messageId", msg.ID).
		Str("mediaId", mediaID).
		Int("bytes", len(audio)).
		Msg("speech synthesized")
	return audio, nil
}

// cancellableReader stops a stream copy as soon as its context is
// cancelled, so replaced playbacks do not keep writing to the wire.
type cancellableReader struct {
	ctx context.Context
	r   io.Reader
}

func newCancellableReader(ctx context.Context, r io.Reader) io.Reader {
	return &cancellableReader{ctx: ctx, r: r}
}

func (c *cancellableReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
