package amqp

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"famfin/internal/analytics"
	"famfin/internal/core"
)

func TestNewAlertMessage(t *testing.T) {
	alert := analytics.BudgetAlert{
		BudgetID:   "b1",
		Category:   "Food",
		Level:      analytics.AlertWarning,
		State:      analytics.StateNearLimit,
		Percentage: 85,
		Spent:      core.Money{Cents: 85000},
		Limit:      core.Money{Cents: 100000},
	}
	msg := NewAlertMessage(alert)

	if _, err := uuid.Parse(msg.MessageID); err != nil {
		t.Errorf("MessageID %q is not a UUID: %v", msg.MessageID, err)
	}
	if time.Since(msg.PublishedAt) > time.Second {
		t.Error("PublishedAt should be recent")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := AlertMessageFromJSON(body)
	if err != nil {
		t.Fatalf("AlertMessageFromJSON() error = %v", err)
	}
	if parsed.Alert.Spent != alert.Spent || parsed.Alert.State != alert.State {
		t.Errorf("parsed alert = %+v, want %+v", parsed.Alert, alert)
	}
}

func TestEvaluationRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"owner", `{"owner":{"kind":"individual","id":"alice"}}`, false},
		{"budget only", `{"budget_id":"b-1"}`, false},
		{"missing owner", `{"message_id":"x"}`, true},
		{"bad kind", `{"owner":{"kind":"club","id":"x"}}`, true},
		{"not json", `owner=alice`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluationRequestFromJSON([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("EvaluationRequestFromJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	_, err := EvaluationRequestFromJSON([]byte(`{"owner":{"kind":"club","id":"x"}}`))
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("invalid owner error = %v, want ErrValidation", err)
	}
}

func TestNewEvaluationRequestTrimsBudgetID(t *testing.T) {
	req := NewEvaluationRequest(core.OwnerScope{}, "  b-9 ")
	if req.BudgetID != "b-9" {
		t.Errorf("BudgetID = %q, want b-9", req.BudgetID)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
