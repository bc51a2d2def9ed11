package jobs

import (
	"context"
	"testing"
	"time"

	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/repository"
)

type stubSessionRepo struct {
	deleteExpiredCount int64
	deleteExpiredCalls atomic.Int64
}

func (s *stubSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (s *stubSessionRepo) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	return nil
}

func (s *stubSessionRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (s *stubSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	s.deleteExpiredCalls.Add(1)
	return s.deleteExpiredCount, nil
}

func (s *stubSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return s
}

type stubTranscriptRepo struct {
	deleteOrphanedCount int64
	deleteOrphanedCalls atomic.Int64
}

func (s *stubTranscriptRepo) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	return nil, nil
}

func (s *stubTranscriptRepo) ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return nil, nil
}

func (s *stubTranscriptRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	return 0, nil
}

func (s *stubTranscriptRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.ChatMessage, error) {
	return nil, nil
}

func (s *stubTranscriptRepo) SetAudioMedia(ctx context.Context, id string, mediaID string) (bool, error) {
	return false, nil
}

func (s *stubTranscriptRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (s *stubTranscriptRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	s.deleteOrphanedCalls.Add(1)
	return s.deleteOrphanedCount, nil
}

func (s *stubTranscriptRepo) WithTx(tx *sqlx.Tx) repository.TranscriptRepository {
	return s
}

func TestCleanupJob(t *testing.T) {
	t.Run("runs cleanup immediately on start", func(t *testing.T) {
		sessions := &stubSessionRepo{deleteExpiredCount: 2}
		transcripts := &stubTranscriptRepo{deleteOrphanedCount: 5}

		job := NewCleanupJob(sessions, transcripts, time.Hour)
		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool {
			return sessions.deleteExpiredCalls.Load() >= 1 && transcripts.deleteOrphanedCalls.Load() >= 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("runs on each tick", func(t *testing.T) {
		sessions := &stubSessionRepo{}
		transcripts := &stubTranscriptRepo{}

		job := NewCleanupJob(sessions, transcripts, 20*time.Millisecond)
		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool {
			return sessions.deleteExpiredCalls.Load() >= 3
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("stop halts the ticker", func(t *testing.T) {
		sessions := &stubSessionRepo{}
		transcripts := &stubTranscriptRepo{}

		job := NewCleanupJob(sessions, transcripts, 10*time.Millisecond)
		job.Start()
		job.Stop()

		time.Sleep(30 * time.Millisecond)
		calls := sessions.deleteExpiredCalls.Load()

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, calls, sessions.deleteExpiredCalls.Load())
	})
}
