package amqp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"famfin/internal/analytics"
	"famfin/internal/core"
)

// Message types carried in the AMQP Type property.
const (
	TypeBudgetAlert       = "budget.alert"
	TypeEvaluationRequest = "budget.evaluate"
)

// AlertMessage wraps a budget alert published for downstream notifiers.
type AlertMessage struct {
	MessageID   string                `json:"message_id"`
	Alert       analytics.BudgetAlert `json:"alert"`
	PublishedAt time.Time             `json:"published_at"`
}

func NewAlertMessage(alert analytics.BudgetAlert) *AlertMessage {
	return &AlertMessage{
		MessageID:   uuid.NewString(),
		Alert:       alert,
		PublishedAt: time.Now().UTC(),
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EvaluationRequest asks the worker to evaluate every budget of an owner,
// or a single budget when BudgetID is set.
type EvaluationRequest struct {
	MessageID   string          `json:"message_id"`
	Owner       core.OwnerScope `json:"owner"`
	BudgetID    string          `json:"budget_id,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
}

func NewEvaluationRequest(owner core.OwnerScope, budgetID string) *EvaluationRequest {
	return &EvaluationRequest{
		MessageID:   uuid.NewString(),
		Owner:       owner,
		BudgetID:    strings.TrimSpace(budgetID),
		RequestedAt: time.Now().UTC(),
	}
}

func (r *EvaluationRequest) Validate() error {
	if r.BudgetID != "" {
		return nil
	}
	return r.Owner.Validate()
}

func (r *EvaluationRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// EvaluationRequestFromJSON decodes and validates a request body.
func EvaluationRequestFromJSON(data []byte) (*EvaluationRequest, error) {
	var req EvaluationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
