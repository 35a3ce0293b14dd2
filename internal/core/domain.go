package core

import (
	"strings"
	"time"
)

const (
	Individual OwnerKind = "individual"
	Family     OwnerKind = "family"

	Income  MovementType = "income"
	Expense MovementType = "expense"

	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// Uncategorized is the label reported for records without a category.
const Uncategorized = "Uncategorized"

type (
	OwnerKind    string
	MovementType string
	Period       string

	// OwnerScope partitions every aggregation: an individual account or a shared family account.
	OwnerScope struct {
		Kind OwnerKind `json:"kind"`
		ID   string    `json:"id"`
	}

	// DateRange is the half-open interval [Start, End).
	DateRange struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	}

	LedgerRecord struct {
		ID          string       `json:"id"`
		Owner       OwnerScope   `json:"owner"`
		Type        MovementType `json:"type"`
		Amount      Money        `json:"amount"`
		Category    string       `json:"category,omitempty"`
		Description string       `json:"description,omitempty"`
		OccurredAt  time.Time    `json:"occurred_at"`
		AddedBy     string       `json:"added_by,omitempty"`
	}

	Budget struct {
		ID            string     `json:"id"`
		Owner         OwnerScope `json:"owner"`
		Category      string     `json:"category"`
		Limit         Money      `json:"limit"`
		Period        Period     `json:"period"`
		AlertsEnabled bool       `json:"alerts_enabled"`
		// CurrentSpent is an advisory cache; never trusted for alerting.
		CurrentSpent Money     `json:"current_spent"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

func (k OwnerKind) IsValid() bool {
	switch k {
	case Individual, Family:
		return true
	default:
		return false
	}
}

func (t MovementType) IsValid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (p Period) IsValid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func (o OwnerScope) Validate() error {
	if !o.Kind.IsValid() {
		return NewValidationError("owner.kind", "must be individual or family, got %q", o.Kind)
	}
	if strings.TrimSpace(o.ID) == "" {
		return NewValidationError("owner.id", "cannot be empty")
	}
	return nil
}

// String returns "kind:id", used as a cache and routing key.
func (o OwnerScope) String() string {
	return string(o.Kind) + ":" + o.ID
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return NewValidationError("range", "start and end are required")
	}
	if r.End.Before(r.Start) {
		return NewValidationError("range", "end %s is before start %s",
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls in [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r DateRange) Length() time.Duration {
	return r.End.Sub(r.Start)
}

// Days returns the number of calendar days the range touches, rounding partial days up.
func (r DateRange) Days() int {
	d := r.Length()
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Previous returns the equal-length window immediately before r.
func (r DateRange) Previous() DateRange {
	return DateRange{Start: r.Start.Add(-r.Length()), End: r.Start}
}

// DayRange builds a half-open range from two calendar days, both inclusive.
func DayRange(first, last time.Time) DateRange {
	return DateRange{Start: StartOfDay(first), End: StartOfDay(last).AddDate(0, 0, 1)}
}

// MonthRange returns [first of month, first of next month) in UTC.
func MonthRange(year int, month time.Month) DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// CategoryLabel trims category and maps an absent one to Uncategorized.
func CategoryLabel(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return Uncategorized
	}
	return category
}

func (r LedgerRecord) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if !r.Type.IsValid() {
		return NewValidationError("type", "must be income or expense, got %q", r.Type)
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if r.OccurredAt.IsZero() {
		return NewValidationError("occurred_at", "cannot be zero")
	}
	if len(r.Description) > 200 {
		return NewValidationError("description", "too long (max 200 characters)")
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Owner.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(b.Category) == "" {
		return NewValidationError("category", "cannot be empty")
	}
	if b.Limit.Cents <= 0 {
		return NewValidationError("limit", "must be greater than zero")
	}
	if !b.Period.IsValid() {
		return NewValidationError("period", "must be weekly, monthly or yearly, got %q", b.Period)
	}
	return nil
}
