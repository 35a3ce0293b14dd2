package storage

import (
	"strings"
	"time"

	"famfin/internal/core"
	"famfin/internal/ledger"
)

const (
	insertRecordSQL = `INSERT INTO ledger_records
	(id, owner_kind, owner_id, type, amount_cents, category, description, occurred_at_ms, added_by, created_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecordSQL = `SELECT id, owner_kind, owner_id, type, amount_cents, category, description, occurred_at_ms, added_by
	FROM ledger_records`

	insertBudgetSQL = `INSERT INTO budgets
	(id, owner_kind, owner_id, category, limit_cents, period, alerts_enabled, current_spent_cents, created_at_ms, updated_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectBudgetSQL = `SELECT id, owner_kind, owner_id, category, limit_cents, period, alerts_enabled, current_spent_cents, created_at_ms
	FROM budgets`

	// Timestamps are bucketed in UTC.
	tsExpr       = `(occurred_at_ms / 1000.0)`
	categoryExpr = `COALESCE(NULLIF(category, ''), '` + core.Uncategorized + `')`
)

// dim is one GROUP BY column and how it lands in a bucket key.
type dim struct {
	expr string
	text bool
	set  func(k *ledger.BucketKey, n int64, s string)
}

var (
	dimYear = dim{
		expr: `CAST(strftime('%Y', ` + tsExpr + `, 'unixepoch') AS INTEGER)`,
		set:  func(k *ledger.BucketKey, n int64, _ string) { k.Year = int(n) },
	}
	dimMonth = dim{
		expr: `CAST(strftime('%m', ` + tsExpr + `, 'unixepoch') AS INTEGER)`,
		set:  func(k *ledger.BucketKey, n int64, _ string) { k.Month = time.Month(n) },
	}
	dimDay = dim{
		expr: `CAST(strftime('%d', ` + tsExpr + `, 'unixepoch') AS INTEGER)`,
		set:  func(k *ledger.BucketKey, n int64, _ string) { k.Day = int(n) },
	}
	// %w is 0-6 with Sunday as 0, matching time.Weekday.
	dimWeekday = dim{
		expr: `CAST(strftime('%w', ` + tsExpr + `, 'unixepoch') AS INTEGER)`,
		set:  func(k *ledger.BucketKey, n int64, _ string) { k.Weekday = time.Weekday(n) },
	}
	dimType = dim{
		expr: `type`,
		text: true,
		set:  func(k *ledger.BucketKey, _ int64, s string) { k.Type = core.MovementType(s) },
	}
	dimCategory = dim{
		expr: categoryExpr,
		text: true,
		set:  func(k *ledger.BucketKey, _ int64, s string) { k.Category = s },
	}
)

func groupDims(g ledger.GroupBy) []dim {
	switch g {
	case ledger.GroupYearMonth:
		return []dim{dimYear, dimMonth}
	case ledger.GroupCategory:
		return []dim{dimCategory}
	case ledger.GroupDay:
		return []dim{dimYear, dimMonth, dimDay}
	case ledger.GroupWeekday:
		return []dim{dimWeekday}
	case ledger.GroupYearMonthType:
		return []dim{dimYear, dimMonth, dimType}
	case ledger.GroupYearMonthCategory:
		return []dim{dimYear, dimMonth, dimCategory}
	case ledger.GroupType:
		return []dim{dimType}
	case ledger.GroupTypeCategory:
		return []dim{dimType, dimCategory}
	default:
		return nil
	}
}

func where(q ledger.Query) (string, []any) {
	clauses := []string{"owner_kind = ?", "owner_id = ?"}
	args := []any{string(q.Owner.Kind), q.Owner.ID}
	if q.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(q.Type))
	}
	if !q.Range.Start.IsZero() {
		clauses = append(clauses, "occurred_at_ms >= ?")
		args = append(args, q.Range.Start.UnixMilli())
	}
	if !q.Range.End.IsZero() {
		clauses = append(clauses, "occurred_at_ms < ?")
		args = append(args, q.Range.End.UnixMilli())
	}
	if len(q.Categories) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(q.Categories)), ",")
		clauses = append(clauses, categoryExpr+" IN ("+marks+")")
		for _, c := range q.Categories {
			args = append(args, c)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildAggregate(q ledger.Query, dims []dim) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for _, d := range dims {
		sb.WriteString(d.expr)
		sb.WriteString(", ")
	}
	sb.WriteString("COALESCE(SUM(amount_cents), 0), COUNT(*) FROM ledger_records")
	w, args := where(q)
	sb.WriteString(w)
	if len(dims) > 0 {
		sb.WriteString(" GROUP BY ")
		for i := range dims {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(dims[i].expr)
		}
	}
	return sb.String(), args
}

func buildRecords(q ledger.Query) (string, []any) {
	w, args := where(q)
	query := selectRecordSQL + w
	switch q.Sort {
	case ledger.SortOldest:
		query += " ORDER BY occurred_at_ms ASC, id ASC"
	case ledger.SortAmountDesc:
		query += " ORDER BY amount_cents DESC, occurred_at_ms DESC, id ASC"
	default:
		query += " ORDER BY occurred_at_ms DESC, id DESC"
	}
	limit := q.Limit
	if limit == 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)
	return query, args
}
