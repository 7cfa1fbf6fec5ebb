package report

import (
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// DailySeries returns one entry per calendar day of year/month in ascending
// order. Days without transactions report zero; transactions dated outside the
// month are ignored.
func DailySeries(txs []core.Transaction, year, month int) ([]core.DayTotal, error) {
	if err := core.ValidatePeriod(year, month); err != nil {
		return nil, err
	}
	if err := validate(txs); err != nil {
		return nil, err
	}

	days := core.DaysIn(year, month)
	series := make([]core.DayTotal, days)
	first := core.NewDate(year, month, 1)
	for i := range series {
		series[i] = core.DayTotal{
			Date:    first.AddDays(i),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Net:     decimal.Zero,
		}
	}

	for _, tx := range txs {
		if !tx.OccurredOn.InMonth(year, month) {
			continue
		}
		d := &series[tx.OccurredOn.Day()-1]
		switch tx.Kind {
		case core.KindIncome:
			d.Income = d.Income.Add(tx.Amount)
		case core.KindExpense:
			d.Expense = d.Expense.Add(tx.Amount)
		}
	}

	for i := range series {
		series[i].Net = series[i].Income.Sub(series[i].Expense)
	}
	return series, nil
}
