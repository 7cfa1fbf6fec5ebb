package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

type key struct {
	userID      string
	year, month int
}

// Exporter keeps the last exported snapshot per user month in memory.
type Exporter struct {
	mu    sync.Mutex
	rows  map[key]core.MonthSnapshot
	count int
}

var _ sheets.SnapshotExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: make(map[key]core.MonthSnapshot)}
}

func (e *Exporter) ExportSnapshot(_ context.Context, s core.MonthSnapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[key{s.UserID, s.Year, s.Month}] = s
	e.count++
	return nil
}

// Snapshots returns the stored rows ordered by user, year and month.
func (e *Exporter) Snapshots() []core.MonthSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.MonthSnapshot, 0, len(e.rows))
	for _, s := range e.rows {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b core.MonthSnapshot) int {
		return cmp.Or(
			cmp.Compare(a.UserID, b.UserID),
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Month, b.Month),
		)
	})
	return out
}

// Exports counts ExportSnapshot calls, including overwrites.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
