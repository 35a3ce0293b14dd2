package ledger

import (
	"cmp"
	"slices"

	"famfin/internal/core"
)

// typeRank orders income before expense.
func typeRank(t core.MovementType) int {
	switch t {
	case core.Income:
		return 0
	case core.Expense:
		return 1
	default:
		return 2
	}
}

func compareKeys(a, b BucketKey) int {
	return cmp.Or(
		cmp.Compare(a.Year, b.Year),
		cmp.Compare(a.Month, b.Month),
		cmp.Compare(a.Day, b.Day),
		cmp.Compare(a.Weekday, b.Weekday),
		cmp.Compare(typeRank(a.Type), typeRank(b.Type)),
		cmp.Compare(a.Category, b.Category),
	)
}

// SortBuckets orders buckets deterministically: chronologically for time
// keys, then by type, then by category name. Category-only groupings are
// ordered by descending total with ties broken by name.
func SortBuckets(g GroupBy, buckets []Bucket) {
	if g == GroupCategory {
		slices.SortStableFunc(buckets, func(a, b Bucket) int {
			return cmp.Or(
				cmp.Compare(b.Total.Cents, a.Total.Cents),
				cmp.Compare(a.Key.Category, b.Key.Category),
			)
		})
		return
	}
	slices.SortStableFunc(buckets, func(a, b Bucket) int {
		return compareKeys(a.Key, b.Key)
	})
}

// SortRecords orders records by s. Ties fall back to ID so listings are stable.
func SortRecords(s Sort, records []core.LedgerRecord) {
	slices.SortStableFunc(records, func(a, b core.LedgerRecord) int {
		switch s {
		case SortOldest:
			return cmp.Or(a.OccurredAt.Compare(b.OccurredAt), cmp.Compare(a.ID, b.ID))
		case SortAmountDesc:
			return cmp.Or(cmp.Compare(b.Amount.Cents, a.Amount.Cents), b.OccurredAt.Compare(a.OccurredAt), cmp.Compare(a.ID, b.ID))
		default:
			return cmp.Or(b.OccurredAt.Compare(a.OccurredAt), cmp.Compare(b.ID, a.ID))
		}
	})
}

// Page applies offset and limit to an already ordered slice. A zero limit
// means no limit.
func Page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Fold groups records under g. Records must already be filtered.
func Fold(g GroupBy, records []core.LedgerRecord) []Bucket {
	idx := make(map[BucketKey]int)
	out := make([]Bucket, 0)
	for _, r := range records {
		k := g.Key(r)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, Bucket{Key: k})
		}
		out[i].Total = out[i].Total.Add(r.Amount)
		out[i].Count++
	}
	SortBuckets(g, out)
	return out
}
