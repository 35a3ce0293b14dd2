// Package ledger defines the query capability the analytics engine reads
// ledger records and budgets through. Concrete stores live in
// internal/ledger/memory and internal/storage.
package ledger

import (
	"context"
	"time"

	"famfin/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordStore answers declarative aggregation and listing requests.
	RecordStore interface {
		// Aggregate returns grouped sums for the records matching q.
		// An empty match yields an empty slice, never an error.
		Aggregate(ctx context.Context, q Query) ([]Bucket, error)
		// Records returns the matching records ordered by q.Sort and paginated.
		Records(ctx context.Context, q Query) ([]core.LedgerRecord, error)
	}

	// RecordWriter appends records. The engine itself never writes records.
	RecordWriter interface {
		AppendRecord(ctx context.Context, r core.LedgerRecord) (core.LedgerRecord, error)
	}

	BudgetStore interface {
		ListBudgets(ctx context.Context, owner core.OwnerScope) ([]core.Budget, error)
		// GetBudget returns *core.NotFoundError when id is unknown.
		GetBudget(ctx context.Context, id string) (core.Budget, error)
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		// UpdateSpent overwrites the advisory CurrentSpent value. Idempotent.
		UpdateSpent(ctx context.Context, id string, spent core.Money) error
		// ListBudgetOwners returns every owner scope holding at least one budget.
		ListBudgetOwners(ctx context.Context) ([]core.OwnerScope, error)
	}

	// Store is the full capability a backend provides.
	Store interface {
		RecordStore
		RecordWriter
		BudgetStore
	}
)

// Query filters ledger records. Zero values mean "no filter" except for
// Owner, which is always required.
type Query struct {
	Owner core.OwnerScope
	// Type restricts to income or expense when set.
	Type core.MovementType
	// Categories restricts to the given labels. Records without a category
	// match core.Uncategorized.
	Categories []string
	// Range is half-open. A zero Range is unbounded.
	Range   core.DateRange
	GroupBy GroupBy
	Sort    Sort
	Limit   int
	Offset  int
}

func (q Query) Validate() error {
	if err := q.Owner.Validate(); err != nil {
		return err
	}
	if q.Type != "" && !q.Type.IsValid() {
		return core.NewValidationError("type", "must be income or expense, got %q", q.Type)
	}
	if !q.Range.Start.IsZero() || !q.Range.End.IsZero() {
		if err := q.Range.Validate(); err != nil {
			return err
		}
	}
	if !q.GroupBy.IsValid() {
		return core.NewValidationError("group_by", "unknown grouping %q", q.GroupBy)
	}
	if !q.Sort.IsValid() {
		return core.NewValidationError("sort", "unknown sort %q", q.Sort)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return core.NewValidationError("limit", "limit and offset must be >= 0")
	}
	return nil
}

// Matches reports whether r satisfies every filter in q.
func (q Query) Matches(r core.LedgerRecord) bool {
	if r.Owner != q.Owner {
		return false
	}
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	if (!q.Range.Start.IsZero() || !q.Range.End.IsZero()) && !q.Range.Contains(r.OccurredAt) {
		return false
	}
	if len(q.Categories) > 0 {
		label := core.CategoryLabel(r.Category)
		for _, c := range q.Categories {
			if c == label {
				return true
			}
		}
		return false
	}
	return true
}

type GroupBy string

const (
	GroupNone              GroupBy = ""
	GroupYearMonth         GroupBy = "year-month"
	GroupCategory          GroupBy = "category"
	GroupDay               GroupBy = "day"
	GroupWeekday           GroupBy = "weekday"
	GroupYearMonthType     GroupBy = "year-month+type"
	GroupYearMonthCategory GroupBy = "year-month+category"
	GroupType              GroupBy = "type"
	GroupTypeCategory      GroupBy = "type+category"
)

func (g GroupBy) IsValid() bool {
	switch g {
	case GroupNone, GroupYearMonth, GroupCategory, GroupDay, GroupWeekday,
		GroupYearMonthType, GroupYearMonthCategory, GroupType, GroupTypeCategory:
		return true
	default:
		return false
	}
}

// BucketKey identifies a group. Only the fields relevant to the GroupBy that
// produced it are set.
type BucketKey struct {
	Year     int               `json:"year,omitempty"`
	Month    time.Month        `json:"month,omitempty"`
	Day      int               `json:"day,omitempty"`
	Weekday  time.Weekday      `json:"weekday"`
	Type     core.MovementType `json:"type,omitempty"`
	Category string            `json:"category,omitempty"`
}

type Bucket struct {
	Key   BucketKey  `json:"key"`
	Total core.Money `json:"total"`
	Count int64      `json:"count"`
}

// Key computes the bucket key of r under g. Timestamps are bucketed in UTC.
func (g GroupBy) Key(r core.LedgerRecord) BucketKey {
	t := r.OccurredAt.UTC()
	var k BucketKey
	switch g {
	case GroupYearMonth:
		k.Year, k.Month = t.Year(), t.Month()
	case GroupCategory:
		k.Category = core.CategoryLabel(r.Category)
	case GroupDay:
		k.Year, k.Month, k.Day = t.Year(), t.Month(), t.Day()
	case GroupWeekday:
		k.Weekday = t.Weekday()
	case GroupYearMonthType:
		k.Year, k.Month, k.Type = t.Year(), t.Month(), r.Type
	case GroupYearMonthCategory:
		k.Year, k.Month, k.Category = t.Year(), t.Month(), core.CategoryLabel(r.Category)
	case GroupType:
		k.Type = r.Type
	case GroupTypeCategory:
		k.Type, k.Category = r.Type, core.CategoryLabel(r.Category)
	}
	return k
}

type Sort string

const (
	SortNewest     Sort = ""
	SortOldest     Sort = "oldest"
	SortAmountDesc Sort = "amount_desc"
)

func (s Sort) IsValid() bool {
	switch s {
	case SortNewest, SortOldest, SortAmountDesc:
		return true
	default:
		return false
	}
}
