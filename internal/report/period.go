package report

import (
	"fmt"
	"strings"

	"kakeibo/internal/core"
)

// Period is the length of a reporting window.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ParsePeriod parses month, quarter or year. An empty string means month.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodMonth, nil
	case PeriodMonth, PeriodQuarter, PeriodYear:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Range returns the half-open date window [from, to) of the period that
// contains year/month. A quarter starts at month 1, 4, 7 or 10.
func Range(p Period, year, month int) (from, to core.Date, err error) {
	if err := core.ValidatePeriod(year, month); err != nil {
		return core.Date{}, core.Date{}, err
	}

	switch p {
	case PeriodMonth:
		from = core.NewDate(year, month, 1)
		to = core.NewDate(year, month+1, 1)
	case PeriodQuarter:
		start := (month-1)/3*3 + 1
		from = core.NewDate(year, start, 1)
		to = core.NewDate(year, start+3, 1)
	case PeriodYear:
		from = core.NewDate(year, 1, 1)
		to = core.NewDate(year+1, 1, 1)
	default:
		return core.Date{}, core.Date{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
	}
	return from, to, nil
}

// PreviousMonth returns the year/month before the given one.
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
