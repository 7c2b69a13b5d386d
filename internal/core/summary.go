package core

// TagTotal is the spending aggregated under one tag.
type TagTotal struct {
	Name  string
	Count int64
	Total Money
}

// Summary is a compact report over every stored expense.
type Summary struct {
	Total Money
	Count int64
	ByTag []TagTotal
}

// SumCosts adds up the cost of the given expenses.
func SumCosts(expenses []Expense) Money {
	var total int64
	for _, e := range expenses {
		total += e.Cost.Yen
	}
	return Money{Yen: total}
}
