package report

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// BudgetProgress reports, for each budget in order, how much of it the
// expense transactions of its category and month have used. Remaining never
// goes below zero; Over tells when the budget was exceeded.
func BudgetProgress(budgets []core.Budget, categories []core.Category, txs []core.Transaction) ([]core.BudgetProgress, error) {
	for i, b := range budgets {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("budget %d: %w", i, err)
		}
	}
	if err := validate(txs); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	out := make([]core.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		spent := decimal.Zero
		for _, tx := range txs {
			if tx.Kind != core.KindExpense || !tx.HasCategory() || tx.Category.ID != b.CategoryID {
				continue
			}
			if !tx.OccurredOn.InMonth(b.Year, b.Month) {
				continue
			}
			spent = spent.Add(tx.Amount)
		}

		p := core.BudgetProgress{
			Budget:      b,
			Label:       UncategorizedLabel,
			Color:       UncategorizedColor,
			Spent:       spent,
			Remaining:   decimal.Max(b.Amount.Sub(spent), decimal.Zero),
			UsedPercent: share(spent, b.Amount),
			Over:        spent.GreaterThan(b.Amount),
		}
		if c, ok := byID[b.CategoryID]; ok {
			p.Label, p.Color = c.Name, c.Color
		}
		out = append(out, p)
	}
	return out, nil
}
