package memory

import (
	"context"
	"testing"

	"kakeibo/internal/core"
)

func TestExporter(t *testing.T) {
	e := New()
	ctx := context.Background()

	for _, s := range []core.MonthSnapshot{
		{UserID: "b", Year: 2024, Month: 1},
		{UserID: "a", Year: 2024, Month: 2},
		{UserID: "a", Year: 2024, Month: 1, Summary: core.PeriodSummary{Count: 1}},
		{UserID: "a", Year: 2024, Month: 1, Summary: core.PeriodSummary{Count: 2}},
	} {
		if err := e.ExportSnapshot(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	got := e.Snapshots()
	if len(got) != 3 {
		t.Fatalf("Snapshots() len = %d, want 3", len(got))
	}
	if got[0].UserID != "a" || got[0].Month != 1 || got[0].Summary.Count != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[2].UserID != "b" {
		t.Errorf("last = %+v", got[2])
	}
	if e.Exports() != 4 {
		t.Errorf("Exports() = %d, want 4", e.Exports())
	}
}
