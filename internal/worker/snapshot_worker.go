// Package worker runs the background side of kakeibo: it consumes
// transaction events and keeps month snapshots up to date.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"kakeibo/internal/events"
	"kakeibo/internal/log"
)

// Processor rebuilds snapshots for events and on a timer.
type Processor interface {
	Handle(ctx context.Context, e events.TransactionEvent) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Stats counts handled events since start.
type Stats struct {
	Processed int64
	Failed    int64
}

// SnapshotWorker feeds events from a consumer into a processor. Without a
// consumer it only runs the processor's periodic rebuilds.
type SnapshotWorker struct {
	consumer        events.Consumer
	processor       Processor
	logger          *log.Logger
	shutdownTimeout time.Duration

	processed atomic.Int64
	failed    atomic.Int64
}

func NewSnapshotWorker(consumer events.Consumer, processor Processor, logger *log.Logger) *SnapshotWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotWorker{
		consumer:        consumer,
		processor:       processor,
		logger:          logger.WithComponent(log.ComponentWorker),
		shutdownTimeout: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled or the consumer fails. The processor is
// stopped before Run returns.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start snapshot processor: %w", err)
	}
	defer w.stopProcessor()

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "No event consumer configured, running periodic rebuilds only")
		<-ctx.Done()
		return nil
	}

	w.logger.InfoContext(ctx, "Consuming transaction events")
	err := w.consumer.Consume(ctx, w.handle)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("consume events: %w", err)
	}
	return nil
}

func (w *SnapshotWorker) handle(ctx context.Context, e events.TransactionEvent) error {
	start := time.Now()
	logger := w.logger.With(
		log.FieldEventType, e.Type,
		log.FieldUserID, e.UserID,
		log.FieldTransactionID, e.TransactionID.String())

	if err := w.processor.Handle(ctx, e); err != nil {
		w.failed.Add(1)
		logger.ErrorContext(ctx, "Failed to process event", log.FieldError, err)
		return err
	}
	w.processed.Add(1)
	logger.DebugContext(ctx, "Event processed", log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *SnapshotWorker) stopProcessor() {
	ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	if err := w.processor.Stop(ctx); err != nil {
		w.logger.Warn("Snapshot processor did not stop cleanly", log.FieldError, err)
	}
}

// Stats returns the event counters.
func (w *SnapshotWorker) Stats() Stats {
	return Stats{Processed: w.processed.Load(), Failed: w.failed.Load()}
}
