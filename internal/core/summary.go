package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayTotal is one day of a month's cash flow.
type DayTotal struct {
	Date    Date            `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// CategoryTotal is the amount attributed to one category within a kind.
// Share is a percentage in [0, 100] with two decimals.
type CategoryTotal struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Color string          `json:"color"`
	Total decimal.Decimal `json:"total"`
	Share decimal.Decimal `json:"share"`
}

// PeriodSummary is a compact summary for a set of transactions.
type PeriodSummary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Count   int             `json:"count"`
}

// TopCategories ranks categories separately per kind.
type TopCategories struct {
	Income  []CategoryTotal `json:"income"`
	Expense []CategoryTotal `json:"expense"`
}

// CategoryComparison puts income and expense of one category side by side.
type CategoryComparison struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Color   string          `json:"color"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Total   decimal.Decimal `json:"total"`
}

// BudgetProgress compares a budget with what was actually spent.
type BudgetProgress struct {
	Budget      Budget          `json:"budget"`
	Label       string          `json:"label"`
	Color       string          `json:"color"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	UsedPercent decimal.Decimal `json:"used_percent"`
	Over        bool            `json:"over"`
}

// Trend compares a period's expense with the previous one.
type Trend struct {
	ExpenseDelta  decimal.Decimal `json:"expense_delta"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Direction     string          `json:"direction"`
}

// MonthSnapshot is the persisted summary of one user's month.
type MonthSnapshot struct {
	UserID     string        `json:"user_id"`
	Year       int           `json:"year"`
	Month      int           `json:"month"`
	Summary    PeriodSummary `json:"summary"`
	ComputedAt time.Time     `json:"computed_at"`
}
