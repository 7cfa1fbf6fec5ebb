package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"kakeibo/internal/storage"
	"kakeibo/internal/storage/storagetest"
)

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		path := filepath.Join(t.TempDir(), "nested", "kakeibo.db")
		s, err := storage.OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

// TestPostgresStore runs against a live server when KAKEIBO_TEST_POSTGRES_DSN
// points at a disposable database.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("KAKEIBO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KAKEIBO_TEST_POSTGRES_DSN not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := storage.OpenPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("OpenPostgres() error = %v", err)
		}
		t.Cleanup(func() {
			if err := storage.RollbackMigrations(storage.Postgres, dsn, 1); err != nil {
				t.Errorf("rollback: %v", err)
			}
			s.Close()
		})
		return s
	})
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	dsn := storage.SQLiteDSN(path)

	v, dirty, err := storage.MigrationVersion(storage.SQLite, dsn)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if v != 0 || dirty {
		t.Errorf("fresh database version = %d dirty=%v, want 0", v, dirty)
	}

	if err := storage.RunMigrations(storage.SQLite, dsn); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if err := storage.RunMigrations(storage.SQLite, dsn); err != nil {
		t.Fatalf("second RunMigrations() should be a no-op, got %v", err)
	}
	if v, _, _ := storage.MigrationVersion(storage.SQLite, dsn); v != 1 {
		t.Errorf("version after up = %d, want 1", v)
	}

	if err := storage.RollbackMigrations(storage.SQLite, dsn, 1); err != nil {
		t.Fatalf("RollbackMigrations() error = %v", err)
	}
	if err := storage.RollbackMigrations(storage.SQLite, dsn, 0); err == nil {
		t.Error("zero steps should be rejected")
	}
}

func TestDialectRebind(t *testing.T) {
	q := `SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?`
	if got := storage.SQLite.Rebind(q); got != q {
		t.Errorf("sqlite Rebind changed query: %s", got)
	}
	want := `SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3`
	if got := storage.Postgres.Rebind(q); got != want {
		t.Errorf("postgres Rebind() = %s, want %s", got, want)
	}
}
