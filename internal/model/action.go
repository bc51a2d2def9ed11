package model

import "encoding/json"

// ProposedAction is an action the assistant wants to take on the user's
// behalf. ID is backend-issued and correlates the later confirmation.
// Data carries at least service_type, amount and currency when the
// action requires payment.
type ProposedAction struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data"`
}

// ServiceType extracts data.service_type, or "" when absent.
func (a *ProposedAction) ServiceType() string {
	v, _ := a.Data["service_type"].(string)
	return v
}

// Amount extracts data.amount. ok is false when the fee is not yet
// known ("to be calculated").
func (a *ProposedAction) Amount() (float64, bool) {
	switch v := a.Data["amount"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Currency extracts data.currency, defaulting to SAR.
func (a *ProposedAction) Currency() string {
	if v, _ := a.Data["currency"].(string); v != "" {
		return v
	}
	return "SAR"
}

func (a *ProposedAction) Raw() *json.RawMessage {
	data, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	raw := json.RawMessage(data)
	return &raw
}

// ActionReview is the snapshot presented while an action awaits the
// user's decision.
type ActionReview struct {
	Action        ProposedAction `json:"action"`
	State         ActionState    `json:"state"`
	ServiceLabel  string         `json:"serviceLabel"`
	FeeLabel      string         `json:"feeLabel"`
	FailureReason string         `json:"failureReason,omitempty"`
}

// CardDetails are the simulated payment form fields. They are collected
// but only checked for presence; the charge itself is mocked server-side.
type CardDetails struct {
	HolderName  string `json:"cardHolder"`
	Number      string `json:"cardNumber"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CVV         string `json:"cvv"`
}
