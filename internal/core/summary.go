package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"category"`
	Amount Money  `json:"total"`
	Count  int64  `json:"count"`
}

// Totals holds per-movement-type sums for a window. Missing buckets are zero.
type Totals struct {
	Income       Money `json:"income"`
	Expense      Money `json:"expense"`
	IncomeCount  int64 `json:"income_count"`
	ExpenseCount int64 `json:"expense_count"`
}

func (t Totals) Balance() Money {
	return t.Income.Sub(t.Expense)
}

func (t Totals) Count() int64 {
	return t.IncomeCount + t.ExpenseCount
}

// Add folds a bucket of the given type into the totals.
func (t *Totals) Add(typ MovementType, amount Money, count int64) {
	switch typ {
	case Income:
		t.Income = t.Income.Add(amount)
		t.IncomeCount += count
	case Expense:
		t.Expense = t.Expense.Add(amount)
		t.ExpenseCount += count
	}
}
