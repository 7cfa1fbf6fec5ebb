package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// SnapshotExporter publishes computed month snapshots to a spreadsheet.
type SnapshotExporter interface {
	ExportSnapshot(ctx context.Context, s core.MonthSnapshot) error
}

// Header is the first row of a snapshot sheet.
var Header = []any{"user", "year", "month", "income", "expense", "balance", "count", "computed_at"}

const columns = 8

var ErrBadRow = errors.New("malformed snapshot row")

// Row renders a snapshot in Header order. Amounts are written as plain
// decimal strings so the sheet can parse them as numbers.
func Row(s core.MonthSnapshot) []any {
	return []any{
		s.UserID,
		s.Year,
		s.Month,
		s.Summary.Income.StringFixed(2),
		s.Summary.Expense.StringFixed(2),
		s.Summary.Balance.StringFixed(2),
		s.Summary.Count,
		s.ComputedAt.UTC().Format(time.RFC3339),
	}
}

// Matches reports whether a sheet row holds the snapshot of the given user month.
func Matches(row []any, userID string, year, month int) bool {
	if len(row) < 3 {
		return false
	}
	return cell(row, 0) == userID && cell(row, 1) == strconv.Itoa(year) && cell(row, 2) == strconv.Itoa(month)
}

// ParseRow is the inverse of Row. Values may come back from the Sheets API
// as strings or numbers.
func ParseRow(row []any) (core.MonthSnapshot, error) {
	if len(row) < columns {
		return core.MonthSnapshot{}, fmt.Errorf("%w: %d columns", ErrBadRow, len(row))
	}
	var (
		s   core.MonthSnapshot
		err error
	)
	s.UserID = cell(row, 0)
	if s.Year, err = strconv.Atoi(cell(row, 1)); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("%w: year: %v", ErrBadRow, err)
	}
	if s.Month, err = strconv.Atoi(cell(row, 2)); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("%w: month: %v", ErrBadRow, err)
	}
	amounts := []*decimal.Decimal{&s.Summary.Income, &s.Summary.Expense, &s.Summary.Balance}
	for i, dst := range amounts {
		if *dst, err = decimal.NewFromString(cell(row, 3+i)); err != nil {
			return core.MonthSnapshot{}, fmt.Errorf("%w: %v: %v", ErrBadRow, Header[3+i], err)
		}
	}
	if s.Summary.Count, err = strconv.Atoi(cell(row, 6)); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("%w: count: %v", ErrBadRow, err)
	}
	if s.ComputedAt, err = time.Parse(time.RFC3339, cell(row, 7)); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("%w: computed_at: %v", ErrBadRow, err)
	}
	return s, nil
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}
