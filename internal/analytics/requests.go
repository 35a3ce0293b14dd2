package analytics

import (
	"strings"
	"time"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

// AggregateRequest asks for grouped sums over a half-open window.
type AggregateRequest struct {
	Owner      core.OwnerScope   `json:"owner"`
	Type       core.MovementType `json:"type,omitempty"`
	Categories []string          `json:"categories,omitempty"`
	Range      core.DateRange    `json:"range"`
	GroupBy    ledger.GroupBy    `json:"group_by"`
}

func (r AggregateRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if r.Type != "" && !r.Type.IsValid() {
		return core.NewValidationError("type", "must be income or expense, got %q", r.Type)
	}
	if err := r.Range.Validate(); err != nil {
		return err
	}
	if !r.GroupBy.IsValid() {
		return core.NewValidationError("group_by", "unknown grouping %q", r.GroupBy)
	}
	return validateCategories(r.Categories)
}

func (r AggregateRequest) query() ledger.Query {
	return ledger.Query{
		Owner:      r.Owner,
		Type:       r.Type,
		Categories: r.Categories,
		Range:      r.Range,
		GroupBy:    r.GroupBy,
	}
}

func validateCategories(cats []string) error {
	for _, c := range cats {
		if strings.TrimSpace(c) == "" {
			return core.NewValidationError("categories", "category filter cannot contain blank names")
		}
	}
	return nil
}

// RangeRequest is the input of the summary and comparison reports.
type RangeRequest struct {
	Owner core.OwnerScope `json:"owner"`
	Range core.DateRange  `json:"range"`
}

func (r RangeRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	return r.Range.Validate()
}

// DetailedRequest selects the transaction listing of a detailed report.
type DetailedRequest struct {
	Owner      core.OwnerScope `json:"owner"`
	Range      core.DateRange  `json:"range"`
	Categories []string        `json:"categories,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

const maxDetailedLimit = 1000

func (r DetailedRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if err := r.Range.Validate(); err != nil {
		return err
	}
	if r.Limit < 0 || r.Limit > maxDetailedLimit {
		return core.NewValidationError("limit", "must be between 0 and %d", maxDetailedLimit)
	}
	if r.Offset < 0 {
		return core.NewValidationError("offset", "must be >= 0")
	}
	return validateCategories(r.Categories)
}

// MonthRequest identifies one calendar month.
type MonthRequest struct {
	Owner core.OwnerScope `json:"owner"`
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
}

func (r MonthRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if err := validateYear(r.Year); err != nil {
		return err
	}
	if r.Month < time.January || r.Month > time.December {
		return core.NewValidationError("month", "must be between 1 and 12, got %d", r.Month)
	}
	return nil
}

type YearRequest struct {
	Owner core.OwnerScope `json:"owner"`
	Year  int             `json:"year"`
}

func (r YearRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	return validateYear(r.Year)
}

func validateYear(y int) error {
	if y < 1970 || y > 9999 {
		return core.NewValidationError("year", "must be between 1970 and 9999, got %d", y)
	}
	return nil
}

// TrendRequest configures the trend analysis. Zero values take the defaults.
type TrendRequest struct {
	Owner       core.OwnerScope `json:"owner"`
	Months      int             `json:"months,omitempty"`
	TopK        int             `json:"top_k,omitempty"`
	RankingDays int             `json:"ranking_days,omitempty"`
}

// TrendPresets maps the named trend windows to a month count.
var TrendPresets = map[string]int{
	"3months": 3,
	"6months": 6,
	"1year":   12,
}

func (r TrendRequest) withDefaults() TrendRequest {
	if r.Months == 0 {
		r.Months = DefaultTrendMonths
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopCategories
	}
	if r.RankingDays == 0 {
		r.RankingDays = DefaultRankingDays
	}
	return r
}

func (r TrendRequest) Validate() error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	r = r.withDefaults()
	if r.Months < 1 || r.Months > MaxTrendMonths {
		return core.NewValidationError("months", "must be between 1 and %d, got %d", MaxTrendMonths, r.Months)
	}
	if r.TopK < 1 || r.TopK > 50 {
		return core.NewValidationError("top_k", "must be between 1 and 50, got %d", r.TopK)
	}
	if r.RankingDays < 1 || r.RankingDays > 3660 {
		return core.NewValidationError("ranking_days", "must be between 1 and 3660, got %d", r.RankingDays)
	}
	return nil
}

type ForecastRequest struct {
	Owner   core.OwnerScope `json:"owner"`
	Horizon int             `json:"horizon"`
}

func (r ForecastRequest) validate(maxHorizon int) error {
	if err := r.Owner.Validate(); err != nil {
		return err
	}
	if r.Horizon < 1 || r.Horizon > maxHorizon {
		return core.NewValidationError("horizon", "must be between 1 and %d, got %d", maxHorizon, r.Horizon)
	}
	return nil
}

// CreateBudgetRequest carries the fields a caller may set on a new budget.
type CreateBudgetRequest struct {
	Owner         core.OwnerScope `json:"owner"`
	Category      string          `json:"category"`
	Limit         core.Money      `json:"limit"`
	Period        core.Period     `json:"period"`
	AlertsEnabled *bool           `json:"alerts_enabled,omitempty"`
}

func (r CreateBudgetRequest) budget() core.Budget {
	alerts := true
	if r.AlertsEnabled != nil {
		alerts = *r.AlertsEnabled
	}
	return core.Budget{
		Owner:         r.Owner,
		Category:      strings.TrimSpace(r.Category),
		Limit:         r.Limit,
		Period:        r.Period,
		AlertsEnabled: alerts,
	}
}

func (r CreateBudgetRequest) Validate() error {
	return r.budget().Validate()
}
