package core

import (
	"errors"
	"testing"
	"time"
)

func TestOwnerScopeValidate(t *testing.T) {
	cases := []struct {
		o  OwnerScope
		ok bool
	}{
		{OwnerScope{Kind: Individual, ID: "u1"}, true},
		{OwnerScope{Kind: Family, ID: "f1"}, true},
		{OwnerScope{Kind: "team", ID: "x"}, false},
		{OwnerScope{Kind: Individual, ID: "  "}, false},
	}
	for i, tc := range cases {
		err := tc.o.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestDateRange(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	r := DateRange{Start: start, End: end}

	if err := r.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (DateRange{Start: end, End: start}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for end < start, got %v", err)
	}
	if err := (DateRange{End: end}).Validate(); err == nil {
		t.Fatalf("expected error for zero start")
	}
	if !r.Contains(start) || r.Contains(end) {
		t.Fatalf("range must be half-open")
	}
	if r.Days() != 30 {
		t.Fatalf("expected 30 days, got %d", r.Days())
	}

	prev := r.Previous()
	if !prev.End.Equal(start) || prev.Length() != r.Length() {
		t.Fatalf("unexpected previous window %v", prev)
	}
}

func TestDayRangeIsInclusive(t *testing.T) {
	r := DayRange(time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC))
	if !r.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", r.Start)
	}
	if !r.End.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", r.End)
	}
	if r.Days() != 31 {
		t.Fatalf("expected 31 days, got %d", r.Days())
	}
}

func TestMonthRangeDecember(t *testing.T) {
	r := MonthRange(2024, time.December)
	if !r.End.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", r.End)
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		Owner:    OwnerScope{Kind: Individual, ID: "u1"},
		Category: "Food",
		Limit:    Money{Cents: 100000},
		Period:   Monthly,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Budget{
		{Owner: good.Owner, Category: "", Limit: good.Limit, Period: Monthly},
		{Owner: good.Owner, Category: "Food", Limit: Money{}, Period: Monthly},
		{Owner: good.Owner, Category: "Food", Limit: Money{Cents: -5}, Period: Monthly},
		{Owner: good.Owner, Category: "Food", Limit: good.Limit, Period: "daily"},
		{Owner: OwnerScope{}, Category: "Food", Limit: good.Limit, Period: Monthly},
	}
	for i, b := range bads {
		var verr *ValidationError
		if err := b.Validate(); !errors.As(err, &verr) {
			t.Fatalf("case %d expected *ValidationError, got %v", i, err)
		}
	}
}

func TestLedgerRecordValidate(t *testing.T) {
	good := LedgerRecord{
		Owner:      OwnerScope{Kind: Family, ID: "f1"},
		Type:       Expense,
		Amount:     Money{Cents: 1},
		OccurredAt: time.Now(),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Type = "transfer"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	bad = good
	bad.Amount = Money{}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWrapStoreError(t *testing.T) {
	if WrapStoreError("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	nf := &NotFoundError{Kind: "budget", ID: "b1"}
	if err := WrapStoreError("op", nf); err != nf {
		t.Fatalf("not found must pass through, got %v", err)
	}
	err := WrapStoreError("aggregate", errors.New("connection refused"))
	var sue *StoreUnavailableError
	if !errors.As(err, &sue) || sue.Op != "aggregate" {
		t.Fatalf("expected StoreUnavailableError, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("store failure must not look like validation")
	}
}

func TestCategoryLabel(t *testing.T) {
	if CategoryLabel(" ") != Uncategorized || CategoryLabel("Food") != "Food" || CategoryLabel(" Food\t") != "Food" {
		t.Fatalf("unexpected labels")
	}
}
