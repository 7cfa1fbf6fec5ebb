package google

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	ports "kakeibo/internal/sheets"
)

var cellRange = regexp.MustCompile(`^(.+)!A(\d+):H(\d+)$`)

// fakeValues keeps one grid per sheet and understands the ranges the
// exporter produces.
type fakeValues struct {
	sheets  map[string][][]any
	getErr  error
	updates []string
}

func newFakeValues() *fakeValues {
	return &fakeValues{sheets: map[string][][]any{}}
}

func (f *fakeValues) Get(_ context.Context, _, rng string) ([][]any, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	sheet := strings.TrimSuffix(rng, "!A:H")
	return f.sheets[sheet], nil
}

func (f *fakeValues) Update(_ context.Context, _, rng string, values [][]any) error {
	m := cellRange.FindStringSubmatch(rng)
	if m == nil {
		return fmt.Errorf("unexpected range %q", rng)
	}
	f.updates = append(f.updates, rng)
	row, _ := strconv.Atoi(m[2])
	grid := f.sheets[m[1]]
	for len(grid) < row {
		grid = append(grid, nil)
	}
	grid[row-1] = values[0]
	f.sheets[m[1]] = grid
	return nil
}

func snap(user string, month int, count int) core.MonthSnapshot {
	return core.MonthSnapshot{
		UserID: user,
		Year:   2024,
		Month:  month,
		Summary: core.PeriodSummary{
			Income:  decimal.NewFromInt(1000),
			Expense: decimal.NewFromInt(400),
			Balance: decimal.NewFromInt(600),
			Count:   count,
		},
		ComputedAt: time.Date(2024, time.Month(month), 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestExporter_WritesHeaderThenRow(t *testing.T) {
	values := newFakeValues()
	e := newExporter(values, Options{SpreadsheetID: "sheet"}, log.Discard())

	if err := e.ExportSnapshot(context.Background(), snap("u1", 3, 2)); err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}

	grid := values.sheets["2024 Snapshots"]
	if len(grid) != 2 {
		t.Fatalf("grid has %d rows, want header + 1", len(grid))
	}
	if grid[0][0] != "user" {
		t.Errorf("first row should be the header, got %v", grid[0])
	}
	want := []string{"2024 Snapshots!A1:H1", "2024 Snapshots!A2:H2"}
	if strings.Join(values.updates, ",") != strings.Join(want, ",") {
		t.Errorf("updates = %v, want %v", values.updates, want)
	}
}

func TestExporter_UpsertsExistingRow(t *testing.T) {
	values := newFakeValues()
	e := newExporter(values, Options{SpreadsheetID: "sheet", SheetName: "Kakeibo"}, log.Discard())
	ctx := context.Background()

	for _, s := range []core.MonthSnapshot{snap("u1", 3, 1), snap("u2", 3, 1), snap("u1", 4, 1), snap("u1", 3, 9)} {
		if err := e.ExportSnapshot(ctx, s); err != nil {
			t.Fatalf("ExportSnapshot() error = %v", err)
		}
	}

	got, err := e.ReadSnapshots(ctx, 2024)
	if err != nil {
		t.Fatalf("ReadSnapshots() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadSnapshots() returned %d rows, want 3", len(got))
	}
	if got[0].UserID != "u1" || got[0].Month != 3 || got[0].Summary.Count != 9 {
		t.Errorf("first row = %+v, want updated u1 March", got[0])
	}
	if _, ok := values.sheets["2024 Kakeibo"]; !ok {
		t.Error("sheet name should be prefixed with the year")
	}
}

func TestExporter_ReadError(t *testing.T) {
	values := newFakeValues()
	values.getErr = errors.New("quota exceeded")
	e := newExporter(values, Options{SpreadsheetID: "sheet"}, log.Discard())

	err := e.ExportSnapshot(context.Background(), snap("u1", 1, 1))
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("ExportSnapshot() error = %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Options{}, nil); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v", err)
	}

	_, err := New(context.Background(), Options{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v", err)
	}

	_, err = New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("New() error = %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Snapshots", 2024, "2024 Snapshots"},
		{"2023 Snapshots", 2024, "2023 Snapshots"},
		{"  Kakeibo ", 2025, "2025 Kakeibo"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

var _ ports.SnapshotExporter = (*Exporter)(nil)
