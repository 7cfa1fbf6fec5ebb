package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/events"
	"kakeibo/internal/log"
	"kakeibo/internal/report"
	"kakeibo/internal/sheets"
	"kakeibo/internal/storage"
)

// SnapshotProcessorConfig holds configuration for the snapshot processor
type SnapshotProcessorConfig struct {
	// RebuildInterval is how often every recently active month is recomputed (default: 1h)
	RebuildInterval time.Duration

	// Lookback limits the periodic rebuild to months with transactions dated
	// within this window (default: 62 days)
	Lookback time.Duration
}

// DefaultSnapshotProcessorConfig returns sensible defaults
func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		RebuildInterval: time.Hour,
		Lookback:        62 * 24 * time.Hour,
	}
}

// SnapshotProcessor keeps month snapshots current. Events trigger a rebuild
// of one month; the periodic loop catches months whose events were lost.
type SnapshotProcessor struct {
	store    storage.Store
	exporter sheets.SnapshotExporter
	config   SnapshotProcessorConfig
	logger   *log.Logger
	now      func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotProcessor creates a new snapshot processor. exporter may be nil.
func NewSnapshotProcessor(store storage.Store, exporter sheets.SnapshotExporter, config SnapshotProcessorConfig, logger *log.Logger) *SnapshotProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	def := DefaultSnapshotProcessorConfig()
	if config.RebuildInterval <= 0 {
		config.RebuildInterval = def.RebuildInterval
	}
	if config.Lookback <= 0 {
		config.Lookback = def.Lookback
	}
	return &SnapshotProcessor{
		store:    store,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// Handle is the events.Handler of the worker.
func (p *SnapshotProcessor) Handle(ctx context.Context, e events.TransactionEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Processing transaction event",
		log.FieldEventType, e.Type,
		log.FieldTransactionID, e.TransactionID,
		log.FieldUserID, e.UserID)

	_, err := p.Rebuild(ctx, e.UserID, e.Year, e.Month)
	return err
}

// Rebuild recomputes, stores and exports the snapshot of one user month.
func (p *SnapshotProcessor) Rebuild(ctx context.Context, userID string, year, month int) (core.MonthSnapshot, error) {
	from, to, err := report.Range(report.PeriodMonth, year, month)
	if err != nil {
		return core.MonthSnapshot{}, err
	}
	txs, err := p.store.ListTransactions(ctx, userID, storage.TransactionFilter{From: from, To: to})
	if err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("list transactions: %w", err)
	}

	snap, err := report.Snapshot(userID, year, month, txs, p.now())
	if err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("compute snapshot: %w", err)
	}
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		return core.MonthSnapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	if p.exporter != nil {
		if err := p.exporter.ExportSnapshot(ctx, snap); err != nil {
			return snap, fmt.Errorf("export snapshot: %w", err)
		}
	}

	p.logger.InfoContext(ctx, "Snapshot rebuilt",
		log.NewFields().WithUser(userID).WithPeriod(year, month).ToSlice()...)
	return snap, nil
}

// RebuildAll recomputes every user month with transactions dated on or
// after since. It keeps going past failures and returns how many months
// were rebuilt together with the first error.
func (p *SnapshotProcessor) RebuildAll(ctx context.Context, since core.Date) (int, error) {
	months, err := p.store.ActiveMonths(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("active months: %w", err)
	}

	var (
		rebuilt  int
		firstErr error
	)
	for _, um := range months {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if _, err := p.Rebuild(ctx, um.UserID, um.Year, um.Month); err != nil {
			p.logger.ErrorContext(ctx, "Failed to rebuild snapshot",
				log.FieldUserID, um.UserID,
				log.FieldYear, um.Year,
				log.FieldMonth, um.Month,
				log.FieldError, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rebuilt++
	}
	return rebuilt, firstErr
}

// Start begins the periodic rebuild loop. Returns an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Snapshot processor started",
		"rebuild_interval", p.config.RebuildInterval,
		"lookback", p.config.Lookback)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Snapshot processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SnapshotProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.RebuildInterval)
	defer ticker.Stop()

	// Rebuild immediately on startup
	p.rebuildRecent(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.rebuildRecent(ctx)
		}
	}
}

func (p *SnapshotProcessor) rebuildRecent(ctx context.Context) {
	since := core.DateOf(p.now().Add(-p.config.Lookback))
	n, err := p.RebuildAll(ctx, since)
	if err != nil {
		p.logger.WarnContext(ctx, "Periodic snapshot rebuild incomplete", "rebuilt", n, log.FieldError, err)
		return
	}
	p.logger.DebugContext(ctx, "Periodic snapshot rebuild finished", "rebuilt", n)
}
