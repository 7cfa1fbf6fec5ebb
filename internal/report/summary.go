package report

import (
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// PeriodSummary totals income and expense over txs. An empty collection
// yields zero totals.
func PeriodSummary(txs []core.Transaction) (core.PeriodSummary, error) {
	if err := validate(txs); err != nil {
		return core.PeriodSummary{}, err
	}
	return summarize(txs), nil
}

func summarize(txs []core.Transaction) core.PeriodSummary {
	s := core.PeriodSummary{
		Income:  decimal.Zero,
		Expense: decimal.Zero,
		Count:   len(txs),
	}
	for _, tx := range txs {
		switch tx.Kind {
		case core.KindIncome:
			s.Income = s.Income.Add(tx.Amount)
		case core.KindExpense:
			s.Expense = s.Expense.Add(tx.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

// Snapshot summarizes the part of txs that falls in year/month.
func Snapshot(userID string, year, month int, txs []core.Transaction, computedAt time.Time) (core.MonthSnapshot, error) {
	if userID == "" {
		return core.MonthSnapshot{}, core.ErrEmptyUserID
	}
	if err := core.ValidatePeriod(year, month); err != nil {
		return core.MonthSnapshot{}, err
	}
	if err := validate(txs); err != nil {
		return core.MonthSnapshot{}, err
	}

	inMonth := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.OccurredOn.InMonth(year, month) {
			inMonth = append(inMonth, tx)
		}
	}
	return core.MonthSnapshot{
		UserID:     userID,
		Year:       year,
		Month:      month,
		Summary:    summarize(inMonth),
		ComputedAt: computedAt.UTC(),
	}, nil
}

// Trend compares current expense with the previous period. The change is
// reported as zero percent when there was no previous expense.
func Trend(current, previous core.PeriodSummary) core.Trend {
	delta := current.Expense.Sub(previous.Expense)
	t := core.Trend{
		ExpenseDelta:  delta,
		ChangePercent: share(delta, previous.Expense),
		Direction:     TrendFlat,
	}
	switch delta.Sign() {
	case 1:
		t.Direction = TrendUp
	case -1:
		t.Direction = TrendDown
	}
	return t
}
