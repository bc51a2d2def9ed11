package gateway

import "github.com/absher-demo/portal-server-go/internal/model"

// Wire shapes for the Absher demo backend. Field names follow the
// backend's snake_case JSON.

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the backend-issued identity for a logged-in user.
type LoginResult struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResult is the assistant's reply, optionally carrying an action
// the assistant wants the user to review.
type ChatResult struct {
	Reply          string                `json:"reply"`
	ProposedAction *model.ProposedAction `json:"proposed_action,omitempty"`
}

// ConfirmParams accepts or rejects a previously proposed action.
// ServiceType is required either way; the backend is informed even on
// rejection.
type ConfirmParams struct {
	UserID      string `json:"user_id"`
	ActionID    string `json:"action_id"`
	Accepted    bool   `json:"accepted"`
	ServiceType string `json:"service_type"`
}

type ConfirmResult struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// ChargeParams carries the simulated card form alongside the action's
// amount and currency.
type ChargeParams struct {
	UserID      string  `json:"user_id"`
	ActionID    string  `json:"action_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	CardHolder  string  `json:"card_holder"`
	CardNumber  string  `json:"card_number"`
	ExpiryMonth string  `json:"expiry_month"`
	ExpiryYear  string  `json:"expiry_year"`
	CVV         string  `json:"cvv"`
}

// ChargeResult reports the outcome of a charge. Any Status other than
// "success" is a business-level decline, even on a 2xx response.
type ChargeResult struct {
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// ChargeSucceeded reports whether the charge settled successfully.
func (r *ChargeResult) ChargeSucceeded() bool {
	return r.Status == "success"
}

// UploadResult identifies a processed ID photo.
type UploadResult struct {
	MediaID string `json:"media_id"`
	Kind    string `json:"kind"`
}

type ttsRequest struct {
	Text string `json:"text"`
}

type transcribeResult struct {
	Text string `json:"text"`
}

// backendError is the error body FastAPI-style backends return.
type backendError struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func (e *backendError) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}
