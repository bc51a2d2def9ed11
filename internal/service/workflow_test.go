package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	"github.com/absher-demo/portal-server-go/internal/model"
)

type mockActionBackend struct {
	mock.Mock
}

func (m *mockActionBackend) ConfirmAction(ctx context.Context, params gateway.ConfirmParams) (*gateway.ConfirmResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ConfirmResult), args.Error(1)
}

func (m *mockActionBackend) ChargePayment(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeResult), args.Error(1)
}

// gatedActionBackend holds confirm calls open until released, so tests
// can assert what happens while one is in flight.
type gatedActionBackend struct {
	confirmStarted chan struct{}
	confirmGate    chan struct{}
	confirmCalls   atomic.Int32
	chargeCalls    atomic.Int32
}

func newGatedActionBackend() *gatedActionBackend {
	return &gatedActionBackend{
		confirmStarted: make(chan struct{}, 2),
		confirmGate:    make(chan struct{}),
	}
}

func (b *gatedActionBackend) releaseConfirm() {
	close(b.confirmGate)
}

func (b *gatedActionBackend) ConfirmAction(ctx context.Context, params gateway.ConfirmParams) (*gateway.ConfirmResult, error) {
	b.confirmCalls.Add(1)
	b.confirmStarted <- struct{}{}
	<-b.confirmGate
	return &gateway.ConfirmResult{Status: "rejected", Detail: "OK"}, nil
}

func (b *gatedActionBackend) ChargePayment(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	b.chargeCalls.Add(1)
	return &gateway.ChargeResult{Status: "success"}, nil
}

func testSession() *model.Session {
	return &model.Session{ID: "sess-1", UserID: "user-1", UserName: "Abdullah"}
}

func renewalAction() model.ProposedAction {
	return model.ProposedAction{
		ID:          "act-1",
		Type:        "renew_national_id",
		Description: "تجديد الهوية الوطنية",
		Data: map[string]any{
			"service_type": "national_id",
			"amount":       150.0,
			"currency":     "SAR",
		},
	}
}

func validCard() model.CardDetails {
	return model.CardDetails{
		HolderName:  "Abdullah Al-Qahtani",
		Number:      "4111111111111111",
		ExpiryMonth: "12",
		ExpiryYear:  "2027",
		CVV:         "123",
	}
}

func TestWorkflowPropose(t *testing.T) {
	t.Run("installs action for review", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))

		assert.True(t, w.Propose("sess-1", renewalAction()))

		review, err := w.Review("sess-1")
		require.NoError(t, err)
		assert.Equal(t, model.ActionStateReviewing, review.State)
		assert.Equal(t, "تجديد الهوية الوطنية", review.ServiceLabel)
		assert.Equal(t, "150.00 SAR", review.FeeLabel)
	})

	t.Run("drops second proposal while one is active", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))

		require.True(t, w.Propose("sess-1", renewalAction()))

		second := renewalAction()
		second.ID = "act-2"
		assert.False(t, w.Propose("sess-1", second))

		review, err := w.Review("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "act-1", review.Action.ID)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))

		require.True(t, w.Propose("sess-1", renewalAction()))
		assert.True(t, w.Propose("sess-2", renewalAction()))
	})

	t.Run("fee falls back to the official table", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))

		action := renewalAction()
		delete(action.Data, "amount")
		require.True(t, w.Propose("sess-1", action))

		review, err := w.Review("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "150.00 SAR", review.FeeLabel)
	})

	t.Run("review without action is not found", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		_, err := w.Review("sess-1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})
}

func TestWorkflowAccept(t *testing.T) {
	t.Run("moves to awaiting payment", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		require.True(t, w.Propose("sess-1", renewalAction()))

		review, err := w.Accept("sess-1")
		require.NoError(t, err)
		assert.Equal(t, model.ActionStateAwaitingPayment, review.State)
	})

	t.Run("unresolvable service type cannot proceed but stays cancellable", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))

		action := renewalAction()
		action.Data = map[string]any{}
		require.True(t, w.Propose("sess-1", action))

		_, err := w.Accept("sess-1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))

		// still reviewable and cancellable
		_, err = w.Review("sess-1")
		require.NoError(t, err)
		require.NoError(t, w.Cancel(context.Background(), testSession()))
	})

	t.Run("double accept conflicts", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		require.True(t, w.Propose("sess-1", renewalAction()))

		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		_, err = w.Accept("sess-1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	})
}

func TestWorkflowReject(t *testing.T) {
	t.Run("informs backend and clears", func(t *testing.T) {
		backend := new(mockActionBackend)
		backend.On("ConfirmAction", mock.Anything, gateway.ConfirmParams{
			UserID:      "user-1",
			ActionID:    "act-1",
			Accepted:    false,
			ServiceType: "national_id",
		}).Return(&gateway.ConfirmResult{Status: "rejected", Detail: "OK"}, nil)

		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))

		result, err := w.Reject(context.Background(), testSession())
		require.NoError(t, err)
		assert.Equal(t, "rejected", result.Status)
		assert.False(t, w.HasActive("sess-1"))
		backend.AssertExpectations(t)
	})

	t.Run("keeps action when backend is unreachable", func(t *testing.T) {
		backend := new(mockActionBackend)
		backend.On("ConfirmAction", mock.Anything, mock.Anything).
			Return(nil, apperrors.Network(assert.AnError))

		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))

		_, err := w.Reject(context.Background(), testSession())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNetwork))
		assert.True(t, w.HasActive("sess-1"))
	})

	t.Run("action without service type is a validation error", func(t *testing.T) {
		backend := new(mockActionBackend)
		w := NewActionWorkflow(backend)

		action := renewalAction()
		action.Data = map[string]any{}
		require.True(t, w.Propose("sess-1", action))

		_, err := w.Reject(context.Background(), testSession())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
		assert.True(t, w.HasActive("sess-1"), "action stays cancellable")
		backend.AssertNotCalled(t, "ConfirmAction")
	})

	t.Run("concurrent rejects confirm once", func(t *testing.T) {
		backend := newGatedActionBackend()
		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))

		results := make(chan error, 2)
		for i := 0; i < 2; i++ {
			go func() {
				_, err := w.Reject(context.Background(), testSession())
				results <- err
			}()
		}

		// One reject reaches the backend; the other must bounce off
		// the transitional state before the call returns.
		<-backend.confirmStarted
		backend.releaseConfirm()

		var errs []error
		for i := 0; i < 2; i++ {
			errs = append(errs, <-results)
		}

		assert.Equal(t, int32(1), backend.confirmCalls.Load())
		conflicts := 0
		for _, err := range errs {
			if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
				conflicts++
			} else {
				assert.NoError(t, err)
			}
		}
		assert.Equal(t, 1, conflicts)
		assert.False(t, w.HasActive("sess-1"))
	})

	t.Run("reject in flight blocks accept and payment", func(t *testing.T) {
		backend := newGatedActionBackend()
		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))

		done := make(chan struct{})
		go func() {
			_, _ = w.Reject(context.Background(), testSession())
			close(done)
		}()
		<-backend.confirmStarted

		_, err := w.Accept("sess-1")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
		_, err = w.Pay(context.Background(), testSession(), validCard())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBusy))

		backend.releaseConfirm()
		<-done

		assert.Equal(t, int32(0), backend.chargeCalls.Load(), "no charge during reject")
		assert.Equal(t, int32(1), backend.confirmCalls.Load())
	})
}

func TestWorkflowPay(t *testing.T) {
	t.Run("charges then confirms exactly once", func(t *testing.T) {
		backend := new(mockActionBackend)
		backend.On("ChargePayment", mock.Anything, mock.MatchedBy(func(p gateway.ChargeParams) bool {
			return p.ActionID == "act-1" && p.Amount == 150.0 && p.Currency == "SAR"
		})).Return(&gateway.ChargeResult{Status: "success"}, nil).Once()
		backend.On("ConfirmAction", mock.Anything, mock.MatchedBy(func(p gateway.ConfirmParams) bool {
			return p.Accepted && p.ActionID == "act-1" && p.ServiceType == "national_id"
		})).Return(&gateway.ConfirmResult{Status: "accepted", Detail: "Renewed"}, nil).Once()

		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))
		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		outcome, err := w.Pay(context.Background(), testSession(), validCard())
		require.NoError(t, err)
		assert.Equal(t, "accepted", outcome.Status)
		assert.Equal(t, "Renewed", outcome.Detail)
		assert.False(t, w.HasActive("sess-1"))
		backend.AssertExpectations(t)
	})

	t.Run("declined charge returns to awaiting payment without confirm", func(t *testing.T) {
		backend := new(mockActionBackend)
		backend.On("ChargePayment", mock.Anything, mock.Anything).
			Return(&gateway.ChargeResult{Status: "declined", FailureReason: "insufficient funds"}, nil)

		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))
		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		_, err = w.Pay(context.Background(), testSession(), validCard())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePaymentDeclined))

		review, err := w.Review("sess-1")
		require.NoError(t, err)
		assert.Equal(t, model.ActionStateAwaitingPayment, review.State)
		assert.Equal(t, "insufficient funds", review.FailureReason)
		backend.AssertNotCalled(t, "ConfirmAction")
	})

	t.Run("declined charge can be retried and then confirms", func(t *testing.T) {
		backend := new(mockActionBackend)
		backend.On("ChargePayment", mock.Anything, mock.Anything).
			Return(nil, apperrors.PaymentDeclined("card expired")).Once()
		backend.On("ChargePayment", mock.Anything, mock.Anything).
			Return(&gateway.ChargeResult{Status: "success"}, nil).Once()
		backend.On("ConfirmAction", mock.Anything, mock.Anything).
			Return(&gateway.ConfirmResult{Status: "accepted"}, nil).Once()

		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))
		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		_, err = w.Pay(context.Background(), testSession(), validCard())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePaymentDeclined))

		outcome, err := w.Pay(context.Background(), testSession(), validCard())
		require.NoError(t, err)
		assert.Equal(t, "accepted", outcome.Status)
		backend.AssertExpectations(t)
	})

	t.Run("confirm failure after settled charge clears the action", func(t *testing.T) {
		backend := new(mockActionBackend)
		backend.On("ChargePayment", mock.Anything, mock.Anything).
			Return(&gateway.ChargeResult{Status: "success"}, nil).Once()
		backend.On("ConfirmAction", mock.Anything, mock.Anything).
			Return(nil, apperrors.Timeout(assert.AnError)).Once()

		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))
		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		_, err = w.Pay(context.Background(), testSession(), validCard())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout))

		// Retrying must not charge or confirm the paid action again.
		assert.False(t, w.HasActive("sess-1"))
		_, err = w.Pay(context.Background(), testSession(), validCard())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
		backend.AssertExpectations(t)
	})

	t.Run("pay before accept conflicts", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		require.True(t, w.Propose("sess-1", renewalAction()))

		_, err := w.Pay(context.Background(), testSession(), validCard())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConflict))
	})

	t.Run("incomplete card is rejected before charging", func(t *testing.T) {
		backend := new(mockActionBackend)
		w := NewActionWorkflow(backend)
		require.True(t, w.Propose("sess-1", renewalAction()))
		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		card := validCard()
		card.CVV = ""
		_, err = w.Pay(context.Background(), testSession(), card)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))
		backend.AssertNotCalled(t, "ChargePayment")
	})
}

func TestWorkflowCancel(t *testing.T) {
	t.Run("allowed while reviewing", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		require.True(t, w.Propose("sess-1", renewalAction()))

		require.NoError(t, w.Cancel(context.Background(), testSession()))
		assert.False(t, w.HasActive("sess-1"))
	})

	t.Run("allowed while awaiting payment", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		require.True(t, w.Propose("sess-1", renewalAction()))
		_, err := w.Accept("sess-1")
		require.NoError(t, err)

		require.NoError(t, w.Cancel(context.Background(), testSession()))
	})

	t.Run("without action is not found", func(t *testing.T) {
		w := NewActionWorkflow(new(mockActionBackend))
		err := w.Cancel(context.Background(), testSession())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})
}
