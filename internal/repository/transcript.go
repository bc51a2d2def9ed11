package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/absher-demo/portal-server-go/internal/model"
)

type TranscriptRepository interface {
	FindByID(ctx context.Context, id string) (*model.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	Append(ctx context.Context, params model.AppendMessageParams) (*model.ChatMessage, error)
	SetAudioMedia(ctx context.Context, id string, mediaID string) (bool, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	DeleteOrphaned(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) TranscriptRepository
}

type transcriptRepo struct {
	db sessionDB
}

func NewTranscriptRepository(db *sqlx.DB) TranscriptRepository {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) WithTx(tx *sqlx.Tx) TranscriptRepository {
	return &transcriptRepo{db: tx}
}

func (r *transcriptRepo) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM chat_messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

func (r *transcriptRepo) ListBySession(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	msgs := []model.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	return msgs, err
}

func (r *transcriptRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM chat_messages WHERE session_id = $1
	`, sessionID)
	return count, err
}

// Append inserts the next message for a session. The seq subquery
// keeps ordering monotonic per session without a separate counter; the
// unique (session_id, seq) index makes concurrent appends fail loudly
// instead of interleaving.
func (r *transcriptRepo) Append(ctx context.Context, params model.AppendMessageParams) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO chat_messages (session_id, seq, author, text, image_url, proposed_action)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM chat_messages WHERE session_id = $1
		RETURNING *
	`, params.SessionID, params.Author, params.Text, params.ImageURL, params.ProposedAction)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetAudioMedia memoizes the synthesized speech resource for a message.
// It only writes once; a second call is a no-op and returns false.
func (r *transcriptRepo) SetAudioMedia(ctx context.Context, id string, mediaID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE chat_messages SET audio_media_id = $2
		WHERE id = $1 AND audio_media_id IS NULL
	`, id, mediaID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *transcriptRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM chat_messages WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *transcriptRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM chat_messages m
		WHERE NOT EXISTS (
			SELECT 1 FROM portal_sessions s WHERE s.id = m.session_id
		)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
