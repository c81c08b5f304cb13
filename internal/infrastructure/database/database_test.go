package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	t.Run("creates database file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "attendance.db")

		db, err := Open(context.Background(), Config{
			Driver:      "sqlite3",
			Path:        dbPath,
			WALMode:     true,
			BusyTimeout: 5,
		})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		// The file appears on first write.
		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (x TEXT)"); err != nil {
			t.Fatalf("CREATE TABLE error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("defaults to sqlite", func(t *testing.T) {
		db, err := Open(context.Background(), Config{Path: memoryPath})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if db.Dialect() != DialectSQLite {
			t.Errorf("Dialect() = %q, want %q", db.Dialect(), DialectSQLite)
		}
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), Config{Driver: "mysql"})
		if !errors.Is(err, ErrUnsupportedDriver) {
			t.Errorf("Open() error = %v, want ErrUnsupportedDriver", err)
		}
	})

	t.Run("rejects empty sqlite path", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{Driver: "sqlite3"}); err == nil {
			t.Error("Open() expected error for empty path, got nil")
		}
	})

	t.Run("rejects empty postgres url", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{Driver: "postgres"}); err == nil {
			t.Error("Open() expected error for empty url, got nil")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestBeginTxRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_rollback_test (value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO tx_rollback_test (value) VALUES (?)", "rolled_back"); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err = tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tx_rollback_test").Scan(&count); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 rows, got %d", count)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %v, want 1 (SQLite single writer)", got)
	}
}

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		query   string
		want    string
	}{
		{DialectSQLite, "SELECT * FROM bssids WHERE bssid = ? AND facility_id = ?", "SELECT * FROM bssids WHERE bssid = ? AND facility_id = ?"},
		{DialectPostgres, "SELECT * FROM bssids WHERE bssid = ? AND facility_id = ?", "SELECT * FROM bssids WHERE bssid = $1 AND facility_id = $2"},
		{DialectPostgres, "DROP TABLE bssids", "DROP TABLE bssids"},
	}

	for _, tt := range tests {
		if got := tt.dialect.Rebind(tt.query); got != tt.want {
			t.Errorf("%s.Rebind(%q) = %q, want %q", tt.dialect, tt.query, got, tt.want)
		}
	}
}

func TestDialect_TableExists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	exists, err := db.Dialect().TableExists(ctx, db, "bssids")
	if err != nil {
		t.Fatalf("TableExists() error = %v", err)
	}
	if exists {
		t.Fatal("TableExists() = true before creation")
	}

	if _, err := db.ExecContext(ctx, "CREATE TABLE bssids (bssid TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	exists, err = db.Dialect().TableExists(ctx, db, "bssids")
	if err != nil {
		t.Fatalf("TableExists() error = %v", err)
	}
	if !exists {
		t.Error("TableExists() = false after creation")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE u (facility_id TEXT, bssid TEXT NOT NULL, UNIQUE(facility_id, bssid))"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO u VALUES ('F1', 'AA:BB')"); err != nil {
		t.Fatalf("first INSERT error = %v", err)
	}

	_, err := db.ExecContext(ctx, "INSERT INTO u VALUES ('F1', 'AA:BB')")
	if err == nil {
		t.Fatal("duplicate INSERT succeeded")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}

	_, err = db.ExecContext(ctx, "INSERT INTO u VALUES ('F1', NULL)")
	if err == nil {
		t.Fatal("NOT NULL violation succeeded")
	}
	if IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = true for NOT NULL failure", err)
	}

	if IsUniqueViolation(nil) || IsUniqueViolation(errors.New("boom")) {
		t.Error("IsUniqueViolation() = true for non-driver error")
	}
}

// TestOpenPostgres runs against a live server when WIFIATTEND_TEST_POSTGRES_URL is set.
func TestOpenPostgres(t *testing.T) {
	url := os.Getenv("WIFIATTEND_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("WIFIATTEND_TEST_POSTGRES_URL not set")
	}

	db, err := Open(context.Background(), Config{Driver: "postgres", URL: url, MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if db.Dialect() != DialectPostgres {
		t.Errorf("Dialect() = %q, want %q", db.Dialect(), DialectPostgres)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if got := db.Stats().MaxOpenConnections; got != 4 {
		t.Errorf("MaxOpenConnections = %d, want 4", got)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Driver:      "sqlite3",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db
}
