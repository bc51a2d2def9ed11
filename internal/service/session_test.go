package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/util"
	"github.com/absher-demo/portal-server-go/internal/voice"
)

type mockAuthBackend struct {
	mock.Mock
}

func (m *mockAuthBackend) Login(ctx context.Context, username, password string) (*gateway.LoginResult, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.LoginResult), args.Error(1)
}

func newSessionService(sessionRepo *mockSessionRepo, transcriptRepo *mockTranscriptRepo, backend *mockAuthBackend) *SessionService {
	return NewSessionService(
		sessionRepo,
		transcriptRepo,
		stubTxRunner{},
		backend,
		voice.NewRegistry(),
		voice.NewPlayer(),
		NewActionWorkflow(new(mockActionBackend)),
		"test-secret",
		24*time.Hour,
	)
}

func TestSessionLogin(t *testing.T) {
	t.Run("stores backend identity and returns raw token", func(t *testing.T) {
		backend := new(mockAuthBackend)
		backend.On("Login", mock.Anything, "abdullah", "123456").
			Return(&gateway.LoginResult{UserID: "user-1", Name: "Abdullah Al-Qahtani"}, nil)

		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.UserID == "user-1" && p.UserName == "Abdullah Al-Qahtani" && p.TokenHash != ""
		})).Return(&model.Session{
			ID:       "sess-1",
			UserID:   "user-1",
			UserName: "Abdullah Al-Qahtani",
		}, nil)

		svc := newSessionService(sessionRepo, new(mockTranscriptRepo), backend)

		result, err := svc.Login(context.Background(), "abdullah", "123456")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, "sess-1", result.Session.ID)

		// only the hash reaches storage
		sessionRepo.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.TokenHash == util.HmacSHA256("test-secret", result.Token)
		}))
	})

	t.Run("propagates auth failure", func(t *testing.T) {
		backend := new(mockAuthBackend)
		backend.On("Login", mock.Anything, "abdullah", "wrong").
			Return(nil, apperrors.AuthFailed())

		svc := newSessionService(new(mockSessionRepo), new(mockTranscriptRepo), backend)

		_, err := svc.Login(context.Background(), "abdullah", "wrong")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthFailed))
	})

	t.Run("refuses incomplete backend identity", func(t *testing.T) {
		backend := new(mockAuthBackend)
		backend.On("Login", mock.Anything, "abdullah", "123456").
			Return(&gateway.LoginResult{UserID: "user-1"}, nil)

		sessionRepo := new(mockSessionRepo)
		svc := newSessionService(sessionRepo, new(mockTranscriptRepo), backend)

		_, err := svc.Login(context.Background(), "abdullah", "123456")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRequestRejected))
		sessionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestSessionCurrent(t *testing.T) {
	t.Run("resolves a valid token", func(t *testing.T) {
		token := "raw-token"
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindByTokenHash", mock.Anything, util.HmacSHA256("test-secret", token)).
			Return(&model.Session{
				ID: "sess-1", UserID: "user-1", UserName: "Abdullah",
				ExpiresAt: time.Now().Add(23 * time.Hour),
			}, nil)

		svc := newSessionService(sessionRepo, new(mockTranscriptRepo), new(mockAuthBackend))

		session, err := svc.Current(context.Background(), token)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "sess-1", session.ID)
		sessionRepo.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("touches a session nearing expiry", func(t *testing.T) {
		nearExpiry := time.Now().Add(time.Hour)
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindByTokenHash", mock.Anything, mock.Anything).
			Return(&model.Session{
				ID: "sess-1", UserID: "user-1", UserName: "Abdullah",
				ExpiresAt: nearExpiry,
			}, nil)
		sessionRepo.On("Touch", mock.Anything, "sess-1", mock.MatchedBy(func(at time.Time) bool {
			return at.After(nearExpiry)
		})).Return(nil)

		svc := newSessionService(sessionRepo, new(mockTranscriptRepo), new(mockAuthBackend))

		session, err := svc.Current(context.Background(), "token")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.True(t, session.ExpiresAt.After(nearExpiry), "expiry slides forward")
		sessionRepo.AssertExpectations(t)
	})

	t.Run("empty token is a miss", func(t *testing.T) {
		svc := newSessionService(new(mockSessionRepo), new(mockTranscriptRepo), new(mockAuthBackend))

		session, err := svc.Current(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("unknown token is a miss", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindByTokenHash", mock.Anything, mock.Anything).Return(nil, nil)

		svc := newSessionService(sessionRepo, new(mockTranscriptRepo), new(mockAuthBackend))

		session, err := svc.Current(context.Background(), "stale")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("partial session is cleared and reads as logged out", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("FindByTokenHash", mock.Anything, mock.Anything).
			Return(&model.Session{ID: "sess-1", UserID: "user-1", UserName: ""}, nil).Once()
		sessionRepo.On("FindByTokenHash", mock.Anything, mock.Anything).
			Return(nil, nil)
		sessionRepo.On("Delete", mock.Anything, "sess-1").Return(nil)

		transcriptRepo := new(mockTranscriptRepo)
		transcriptRepo.On("DeleteBySession", mock.Anything, "sess-1").Return(int64(0), nil)

		svc := newSessionService(sessionRepo, transcriptRepo, new(mockAuthBackend))

		session, err := svc.Current(context.Background(), "token")
		require.NoError(t, err)
		assert.Nil(t, session)
		sessionRepo.AssertCalled(t, "Delete", mock.Anything, "sess-1")

		// clearing twice is harmless
		session, err = svc.Current(context.Background(), "token")
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}

func TestSessionLogout(t *testing.T) {
	t.Run("removes transcript and session", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("Delete", mock.Anything, "sess-1").Return(nil)

		transcriptRepo := new(mockTranscriptRepo)
		transcriptRepo.On("CountBySession", mock.Anything, "sess-1").Return(3, nil)
		transcriptRepo.On("DeleteBySession", mock.Anything, "sess-1").Return(int64(3), nil)

		svc := newSessionService(sessionRepo, transcriptRepo, new(mockAuthBackend))

		err := svc.Logout(context.Background(), &model.Session{ID: "sess-1", UserID: "user-1"})
		require.NoError(t, err)
		sessionRepo.AssertExpectations(t)
		transcriptRepo.AssertExpectations(t)
	})

	t.Run("logout clears the session's active action", func(t *testing.T) {
		sessionRepo := new(mockSessionRepo)
		sessionRepo.On("Delete", mock.Anything, mock.Anything).Return(nil)
		transcriptRepo := new(mockTranscriptRepo)
		transcriptRepo.On("CountBySession", mock.Anything, mock.Anything).Return(0, nil)
		transcriptRepo.On("DeleteBySession", mock.Anything, mock.Anything).Return(int64(0), nil)

		workflow := NewActionWorkflow(new(mockActionBackend))
		svc := NewSessionService(
			sessionRepo, transcriptRepo, stubTxRunner{}, new(mockAuthBackend),
			voice.NewRegistry(), voice.NewPlayer(), workflow, "test-secret", time.Hour,
		)

		require.True(t, workflow.Propose("sess-1", renewalAction()))
		require.NoError(t, svc.Logout(context.Background(), &model.Session{ID: "sess-1", UserID: "user-1"}))
		assert.False(t, workflow.HasActive("sess-1"))
	})
}
