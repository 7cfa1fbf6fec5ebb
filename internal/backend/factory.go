// Package backend builds the store, event transport and snapshot exporter
// selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	"kakeibo/internal/events"
	"kakeibo/internal/events/kafka"
	"kakeibo/internal/log"
	"kakeibo/internal/sheets"
	gsheets "kakeibo/internal/sheets/google"
	"kakeibo/internal/storage"
	"kakeibo/internal/storage/memory"
)

// ErrEventsDisabled is returned when a consumer is requested while the
// events backend is none.
var ErrEventsDisabled = errors.New("events backend is disabled")

// ErrMemoryWorker is returned when the worker is configured with the memory
// data backend. The worker would see its own empty store, never the API's.
var ErrMemoryWorker = errors.New("the worker needs a shared data backend (sqlite or postgres), not memory")

// Backend bundles what a binary needs. Consumer and Exporter are nil when
// not configured.
type Backend struct {
	Store     storage.Store
	Publisher events.Publisher
	Consumer  events.Consumer
	Exporter  sheets.SnapshotExporter

	closers []io.Closer
}

// Close releases resources in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Factory creates backends
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Server opens the store and the publisher used by the API process.
func (f *Factory) Server(ctx context.Context, cfg Config) (*Backend, error) {
	b := &Backend{}
	store, err := f.Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.closers = append(b.closers, store)

	pub, err := f.Publisher(cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Publisher = pub
	b.closers = append(b.closers, pub)
	return b, nil
}

// Worker opens the store, the consumer if events are enabled, and the
// exporter if a spreadsheet is configured.
func (f *Factory) Worker(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Data == config.BackendMemory {
		return nil, ErrMemoryWorker
	}
	b := &Backend{}
	store, err := f.Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.closers = append(b.closers, store)

	consumer, err := f.Consumer(cfg)
	switch {
	case errors.Is(err, ErrEventsDisabled):
		f.logger.Info("Events disabled, relying on periodic rebuilds only")
	case err != nil:
		_ = b.Close()
		return nil, err
	default:
		b.Consumer = consumer
		b.closers = append(b.closers, consumer)
	}

	exporter, err := f.Exporter(ctx, cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Exporter = exporter
	return b, nil
}

// Store opens the data backend. SQL backends are migrated on open.
func (f *Factory) Store(ctx context.Context, cfg Config) (storage.Store, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	switch cfg.Data {
	case config.BackendMemory:
		f.logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case config.BackendSQLite:
		store, err := storage.OpenSQLite(ctx, cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		f.logger.Info("SQLite store ready", "path", cfg.SQLiteDBPath)
		return store, nil
	case config.BackendPostgres:
		store, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		f.logger.Info("Postgres store ready")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported data backend: %q", cfg.Data)
	}
}

// Publisher returns the event publisher. With events disabled every
// publish is dropped.
func (f *Factory) Publisher(cfg Config) (events.Publisher, error) {
	switch cfg.Events {
	case config.EventsNone, "":
		return events.NopPublisher{}, nil
	case config.EventsAMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		return client, nil
	case config.EventsKafka:
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %q", cfg.Events)
	}
}

// Consumer returns the event consumer, or ErrEventsDisabled.
func (f *Factory) Consumer(cfg Config) (events.Consumer, error) {
	switch cfg.Events {
	case config.EventsNone, "":
		return nil, ErrEventsDisabled
	case config.EventsAMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		return client, nil
	case config.EventsKafka:
		return kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %q", cfg.Events)
	}
}

// Exporter returns the Google Sheets snapshot exporter, or nil when no
// spreadsheet is configured.
func (f *Factory) Exporter(ctx context.Context, cfg Config) (sheets.SnapshotExporter, error) {
	if !cfg.ExportEnabled() {
		f.logger.Info("Snapshot export disabled, no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	exporter, err := gsheets.New(ctx, cfg.Sheets, f.logger)
	if err != nil {
		return nil, fmt.Errorf("google sheets exporter: %w", err)
	}
	f.logger.Info("Snapshot export enabled", "spreadsheet_id", cfg.Sheets.SpreadsheetID)
	return exporter, nil
}
