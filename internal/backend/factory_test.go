package backend

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"kakeibo/internal/config"
	"kakeibo/internal/events"
	"kakeibo/internal/log"
	"kakeibo/internal/storage"
	"kakeibo/internal/storage/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	app := &config.Config{
		DataBackend:              config.BackendSQLite,
		SQLiteDBPath:             "/tmp/k.db",
		EventsBackend:            config.EventsKafka,
		KafkaBrokers:             []string{"k1:9092"},
		KafkaTopic:               "t",
		KafkaGroupID:             "g",
		GoogleSpreadsheetID:      "sheet",
		GoogleSnapshotSheetName:  "Snapshots",
		GoogleServiceAccountFile: "/sa.json",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Data != config.BackendSQLite || cfg.SQLiteDBPath != "/tmp/k.db" {
		t.Errorf("unexpected storage config %+v", cfg)
	}
	if cfg.Sheets.SpreadsheetID != "sheet" || cfg.Sheets.CredentialsFile != "/sa.json" {
		t.Errorf("unexpected sheets options %+v", cfg.Sheets)
	}
	if !cfg.ExportEnabled() {
		t.Error("expected export to be enabled")
	}
}

func TestSQLTarget(t *testing.T) {
	d, dsn, err := Config{Data: config.BackendSQLite, SQLiteDBPath: "a.db"}.SQLTarget()
	if err != nil || d != storage.SQLite || dsn != storage.SQLiteDSN("a.db") {
		t.Errorf("sqlite target = %v %q %v", d, dsn, err)
	}
	d, dsn, err = Config{Data: config.BackendPostgres, PostgresDSN: "postgres://x"}.SQLTarget()
	if err != nil || d != storage.Postgres || dsn != "postgres://x" {
		t.Errorf("postgres target = %v %q %v", d, dsn, err)
	}
	if _, _, err := (Config{Data: config.BackendMemory}).SQLTarget(); err == nil {
		t.Error("expected memory backend to have no SQL target")
	}
}

func TestServerMemoryBackend(t *testing.T) {
	f := NewFactory(log.Discard())
	b, err := f.Server(context.Background(), Config{Data: config.BackendMemory, Events: config.EventsNone})
	if err != nil {
		t.Fatalf("Server() error = %v", err)
	}
	defer b.Close()

	if _, ok := b.Store.(*memory.Store); !ok {
		t.Errorf("expected memory store, got %T", b.Store)
	}
	if _, ok := b.Publisher.(events.NopPublisher); !ok {
		t.Errorf("expected nop publisher, got %T", b.Publisher)
	}
	if b.Consumer != nil || b.Exporter != nil {
		t.Error("server backend should not open a consumer or exporter")
	}
}

func TestWorkerWithoutEvents(t *testing.T) {
	f := NewFactory(log.Discard())
	path := filepath.Join(t.TempDir(), "kakeibo.db")
	b, err := f.Worker(context.Background(), Config{Data: config.BackendSQLite, SQLiteDBPath: path, Events: config.EventsNone})
	if err != nil {
		t.Fatalf("Worker() error = %v", err)
	}
	defer b.Close()

	if b.Consumer != nil {
		t.Errorf("expected no consumer, got %T", b.Consumer)
	}
	if b.Exporter != nil {
		t.Errorf("expected no exporter, got %T", b.Exporter)
	}
}

func TestWorkerRejectsMemory(t *testing.T) {
	f := NewFactory(log.Discard())
	b, err := f.Worker(context.Background(), Config{Data: config.BackendMemory, Events: config.EventsNone})
	if !errors.Is(err, ErrMemoryWorker) {
		t.Fatalf("expected ErrMemoryWorker, got %v", err)
	}
	if b != nil {
		t.Errorf("expected no backend, got %+v", b)
	}
}

func TestConsumerDisabled(t *testing.T) {
	_, err := NewFactory(nil).Consumer(Config{Events: config.EventsNone})
	if !errors.Is(err, ErrEventsDisabled) {
		t.Errorf("expected ErrEventsDisabled, got %v", err)
	}
}

func TestUnsupportedBackends(t *testing.T) {
	f := NewFactory(log.Discard())
	if _, err := f.Store(context.Background(), Config{Data: "sheets"}); err == nil {
		t.Error("expected error for unsupported data backend")
	}
	if _, err := f.Publisher(Config{Events: "nats"}); err == nil {
		t.Error("expected error for unsupported events backend")
	}
	if _, err := f.Consumer(Config{Events: "nats"}); err == nil {
		t.Error("expected error for unsupported events backend")
	}
}

func TestSQLiteStoreIsMigrated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kakeibo.db")
	f := NewFactory(log.Discard())

	store, err := f.Store(context.Background(), Config{Data: config.BackendSQLite, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	version, dirty, err := storage.MigrationVersion(storage.SQLite, storage.SQLiteDSN(path))
	if err != nil || dirty || version == 0 {
		t.Errorf("MigrationVersion() = %d %v %v", version, dirty, err)
	}
}

func TestBackendCloseJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	b := &Backend{closers: []io.Closer{closerFunc(func() error { return boom }), closerFunc(func() error { return nil })}}
	if err := b.Close(); !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
