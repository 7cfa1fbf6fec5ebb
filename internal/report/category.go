package report

import (
	"slices"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// chartPalette colors the comparison chart by first-seen category order.
var chartPalette = []string{
	"#2563eb",
	"#7c3aed",
	"#dc2626",
	"#ea580c",
	"#ca8a04",
	"#16a34a",
	"#0891b2",
	"#c2410c",
	"#9333ea",
	"#be123c",
}

// CategoryBreakdown totals the transactions of one kind per category, largest
// first. Ties keep the order in which the categories first appear in txs.
func CategoryBreakdown(txs []core.Transaction, kind core.Kind) ([]core.CategoryTotal, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if err := validate(txs); err != nil {
		return nil, err
	}
	return breakdown(txs, kind), nil
}

func breakdown(txs []core.Transaction, kind core.Kind) []core.CategoryTotal {
	totals := []core.CategoryTotal{}
	index := make(map[string]int)
	sum := decimal.Zero

	for _, tx := range txs {
		if tx.Kind != kind {
			continue
		}
		g := groupOf(tx)
		i, ok := index[g.key]
		if !ok {
			i = len(totals)
			index[g.key] = i
			totals = append(totals, core.CategoryTotal{
				Key:   g.key,
				Label: g.label,
				Color: g.color,
				Total: decimal.Zero,
			})
		}
		totals[i].Total = totals[i].Total.Add(tx.Amount)
		sum = sum.Add(tx.Amount)
	}

	for i := range totals {
		totals[i].Share = share(totals[i].Total, sum)
	}
	slices.SortStableFunc(totals, func(a, b core.CategoryTotal) int {
		return b.Total.Cmp(a.Total)
	})
	return totals
}

// TopCategories returns the n largest categories for income and for expense.
func TopCategories(txs []core.Transaction, n int) (core.TopCategories, error) {
	if n < 1 {
		return core.TopCategories{}, ErrInvalidTopN
	}
	if err := validate(txs); err != nil {
		return core.TopCategories{}, err
	}

	top := func(kind core.Kind) []core.CategoryTotal {
		all := breakdown(txs, kind)
		if len(all) > n {
			all = all[:n]
		}
		return all
	}
	return core.TopCategories{
		Income:  top(core.KindIncome),
		Expense: top(core.KindExpense),
	}, nil
}

// Compare puts income and expense of every category side by side, ordered by
// their combined total. Colors come from a fixed palette in first-seen order so
// neighbouring bars stay distinguishable regardless of category colors.
func Compare(txs []core.Transaction) ([]core.CategoryComparison, error) {
	if err := validate(txs); err != nil {
		return nil, err
	}

	rows := []core.CategoryComparison{}
	index := make(map[string]int)
	for _, tx := range txs {
		g := groupOf(tx)
		i, ok := index[g.key]
		if !ok {
			i = len(rows)
			index[g.key] = i
			rows = append(rows, core.CategoryComparison{
				Key:     g.key,
				Label:   g.label,
				Color:   chartPalette[i%len(chartPalette)],
				Income:  decimal.Zero,
				Expense: decimal.Zero,
				Total:   decimal.Zero,
			})
		}
		r := &rows[i]
		switch tx.Kind {
		case core.KindIncome:
			r.Income = r.Income.Add(tx.Amount)
		case core.KindExpense:
			r.Expense = r.Expense.Add(tx.Amount)
		}
		r.Total = r.Total.Add(tx.Amount)
	}

	slices.SortStableFunc(rows, func(a, b core.CategoryComparison) int {
		return b.Total.Cmp(a.Total)
	})
	return rows, nil
}
