package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/audit"
	apperrors "github.com/absher-demo/portal-server-go/internal/errors"
	"github.com/absher-demo/portal-server-go/internal/gateway"
	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/util"
)

// activeAction is the per-session workflow record. confirmSent latches
// once the backend has been told the user accepted, so a retried
// payment can never confirm the same action twice.
type activeAction struct {
	action        model.ProposedAction
	state         model.ActionState
	failureReason string
	confirmSent   bool
}

type actionBackend interface {
	ConfirmAction(ctx context.Context, params gateway.ConfirmParams) (*gateway.ConfirmResult, error)
	ChargePayment(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error)
}

// ActionWorkflow drives proposed actions from review through payment
// to confirmation. Each session holds at most one action at a time;
// proposals arriving while one is active are dropped, not queued.
type ActionWorkflow struct {
	mu      sync.Mutex
	actions map[string]*activeAction // sessionID -> current action
	backend actionBackend
}

func NewActionWorkflow(backend actionBackend) *ActionWorkflow {
	return &ActionWorkflow{
		actions: make(map[string]*activeAction),
		backend: backend,
	}
}

// Propose installs a new action for review. It reports false when the
// session already has an active action, in which case the proposal is
// discarded.
func (w *ActionWorkflow) Propose(sessionID string, action model.ProposedAction) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.actions[sessionID]; exists {
		log.Warn().
			Str("sessionId", sessionID).
			Str("actionId", action.ID).
			Msg("dropping proposal, another action is active")
		return false
	}

	w.actions[sessionID] = &activeAction{
		action: action,
		state:  model.ActionStateReviewing,
	}
	log.Info().
		Str("sessionId", sessionID).
		Str("actionId", action.ID).
		Str("actionType", action.Type).
		Msg("action proposed")
	return true
}

// Review returns the session's current action, or a not-found error.
func (w *ActionWorkflow) Review(sessionID string) (*model.ActionReview, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	active, ok := w.actions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("active action")
	}
	return w.snapshot(active), nil
}

// snapshot must be called with the lock held.
func (w *ActionWorkflow) snapshot(active *activeAction) *model.ActionReview {
	serviceType := active.action.ServiceType()
	feeLabel := ""
	if amount, ok := w.resolveFee(&active.action); ok {
		feeLabel = fmt.Sprintf("%.2f %s", amount, active.action.Currency())
	}
	return &model.ActionReview{
		Action:        active.action,
		State:         active.state,
		ServiceLabel:  model.ServiceLabel(serviceType, active.action.Description),
		FeeLabel:      feeLabel,
		FailureReason: active.failureReason,
	}
}

// resolveFee prefers the amount the assistant proposed, falling back
// to the official fee table.
func (w *ActionWorkflow) resolveFee(action *model.ProposedAction) (float64, bool) {
	if amount, ok := action.Amount(); ok {
		return amount, true
	}
	return model.ServiceFee(action.ServiceType())
}

// Accept moves a reviewed action toward payment. Actions without a
// resolvable service type cannot proceed and stay cancellable.
func (w *ActionWorkflow) Accept(sessionID string) (*model.ActionReview, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	active, ok := w.actions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("active action")
	}
	if active.state != model.ActionStateReviewing {
		return nil, apperrors.Conflict("action is already past review")
	}
	if active.action.ServiceType() == "" {
		return nil, apperrors.MissingRequired("service_type")
	}

	active.state = model.ActionStateAwaitingPayment
	log.Info().
		Str("sessionId", sessionID).
		Str("actionId", active.action.ID).
		Msg("action accepted, awaiting payment")
	return w.snapshot(active), nil
}

// Reject tells the backend the user declined and clears the action.
// Rejection needs no payment, so it confirms immediately.
func (w *ActionWorkflow) Reject(ctx context.Context, session *model.Session) (*gateway.ConfirmResult, error) {
	w.mu.Lock()
	active, ok := w.actions[session.ID]
	if !ok {
		w.mu.Unlock()
		return nil, apperrors.NotFound("active action")
	}
	if active.state != model.ActionStateReviewing {
		w.mu.Unlock()
		return nil, apperrors.Conflict("action is already past review")
	}
	action := active.action
	serviceType := action.ServiceType()
	if serviceType == "" {
		w.mu.Unlock()
		return nil, apperrors.ValidationError("Cannot determine which service this action refers to")
	}
	// Transitional state: holds off concurrent rejects, accepts and
	// payments while the backend call is in flight.
	active.state = model.ActionStateConfirming
	w.mu.Unlock()

	result, err := w.backend.ConfirmAction(ctx, gateway.ConfirmParams{
		UserID:      session.UserID,
		ActionID:    action.ID,
		Accepted:    false,
		ServiceType: serviceType,
	})
	if err != nil {
		// Nothing was resolved upstream; put the action back so the
		// user can retry.
		w.mu.Lock()
		if cur, ok := w.actions[session.ID]; ok && cur == active {
			cur.state = model.ActionStateReviewing
		}
		w.mu.Unlock()
		return nil, err
	}

	w.Clear(session.ID)
	audit.Log(ctx, audit.Event{
		Type:      audit.EventActionRejected,
		SessionID: session.ID,
		UserID:    session.UserID,
		Details:   map[string]interface{}{"action_id": action.ID},
	})
	return result, nil
}

// Cancel drops the action without informing the backend. Only allowed
// before money starts moving.
func (w *ActionWorkflow) Cancel(ctx context.Context, session *model.Session) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	active, ok := w.actions[session.ID]
	if !ok {
		return apperrors.NotFound("active action")
	}
	if active.state == model.ActionStateCharging || active.state == model.ActionStateConfirming {
		return apperrors.Conflict("payment is in progress")
	}

	delete(w.actions, session.ID)
	audit.Log(ctx, audit.Event{
		Type:      audit.EventActionCancelled,
		SessionID: session.ID,
		UserID:    session.UserID,
		Details:   map[string]interface{}{"action_id": active.action.ID},
	})
	return nil
}

// PaymentOutcome is what the payment flow reports back to the user.
type PaymentOutcome struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Pay charges the card and, only after the charge settles, confirms
// the action with the backend. The confirm happens at most once per
// action: a declined charge returns the action to awaiting payment,
// while a failed confirm after a successful charge clears the action
// rather than risking a duplicate.
func (w *ActionWorkflow) Pay(ctx context.Context, session *model.Session, card model.CardDetails) (*PaymentOutcome, error) {
	w.mu.Lock()
	active, ok := w.actions[session.ID]
	if !ok {
		w.mu.Unlock()
		return nil, apperrors.NotFound("active action")
	}
	switch active.state {
	case model.ActionStateAwaitingPayment:
	case model.ActionStateCharging, model.ActionStateConfirming:
		w.mu.Unlock()
		return nil, apperrors.Busy("payment")
	default:
		w.mu.Unlock()
		return nil, apperrors.Conflict("action has not been accepted yet")
	}

	if err := validateCard(card); err != nil {
		w.mu.Unlock()
		return nil, err
	}

	amount, ok := w.resolveFee(&active.action)
	if !ok {
		w.mu.Unlock()
		return nil, apperrors.InvalidInput("amount", "fee could not be determined")
	}

	action := active.action
	active.state = model.ActionStateCharging
	active.failureReason = ""
	w.mu.Unlock()

	chargeResult, err := w.backend.ChargePayment(ctx, gateway.ChargeParams{
		UserID:      session.UserID,
		ActionID:    action.ID,
		Amount:      amount,
		Currency:    action.Currency(),
		CardHolder:  card.HolderName,
		CardNumber:  card.Number,
		ExpiryMonth: card.ExpiryMonth,
		ExpiryYear:  card.ExpiryYear,
		CVV:         card.CVV,
	})

	if err != nil || !chargeResult.ChargeSucceeded() {
		reason := declineReason(chargeResult, err)
		w.markDeclined(session.ID, reason)
		audit.Log(ctx, audit.Event{
			Type:      audit.EventChargeDeclined,
			SessionID: session.ID,
			UserID:    session.UserID,
			Details: map[string]interface{}{
				"action_id": action.ID,
				"card":      util.MaskCard(card.Number),
				"reason":    reason,
			},
		})
		if err != nil {
			return nil, err
		}
		return nil, apperrors.PaymentDeclined(reason)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventChargeSuccess,
		SessionID: session.ID,
		UserID:    session.UserID,
		Details: map[string]interface{}{
			"action_id": action.ID,
			"amount":    amount,
			"currency":  action.Currency(),
			"card":      util.MaskCard(card.Number),
		},
	})

	// Charge settled; tell the backend exactly once.
	w.mu.Lock()
	active, ok = w.actions[session.ID]
	if !ok || active.confirmSent {
		w.mu.Unlock()
		return nil, apperrors.Conflict("action was already confirmed")
	}
	active.state = model.ActionStateConfirming
	active.confirmSent = true
	w.mu.Unlock()

	confirmResult, err := w.backend.ConfirmAction(ctx, gateway.ConfirmParams{
		UserID:      session.UserID,
		ActionID:    action.ID,
		Accepted:    true,
		ServiceType: action.ServiceType(),
	})

	// Whatever the confirm said, this action is finished: retrying it
	// would double-confirm a paid action.
	w.Clear(session.ID)

	if err != nil {
		log.Error().Err(err).
			Str("sessionId", session.ID).
			Str("actionId", action.ID).
			Msg("confirm failed after successful charge")
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventActionConfirmed,
		SessionID: session.ID,
		UserID:    session.UserID,
		Details:   map[string]interface{}{"action_id": action.ID},
	})
	return &PaymentOutcome{Status: confirmResult.Status, Detail: confirmResult.Detail}, nil
}

func (w *ActionWorkflow) markDeclined(sessionID, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if active, ok := w.actions[sessionID]; ok {
		active.state = model.ActionStateAwaitingPayment
		active.failureReason = reason
	}
}

// Clear removes the session's action unconditionally.
func (w *ActionWorkflow) Clear(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.actions, sessionID)
}

// HasActive reports whether the session has an action in flight.
func (w *ActionWorkflow) HasActive(sessionID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.actions[sessionID]
	return ok
}

func declineReason(result *gateway.ChargeResult, err error) string {
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			return appErr.Message
		}
		return "payment failed"
	}
	if result.FailureReason != "" {
		return result.FailureReason
	}
	return "Payment was declined"
}

func validateCard(card model.CardDetails) error {
	switch {
	case card.HolderName == "":
		return apperrors.MissingRequired("cardHolder")
	case card.Number == "":
		return apperrors.MissingRequired("cardNumber")
	case card.ExpiryMonth == "" || card.ExpiryYear == "":
		return apperrors.MissingRequired("expiry")
	case card.CVV == "":
		return apperrors.MissingRequired("cvv")
	}
	return nil
}
