package store

import (
	"context"
	"path/filepath"
	"testing"

	"factor-backtest/internal/config"
)

func TestNewSQLite_InMemorySharesSchema(t *testing.T) {
	s, err := NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Migrate(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx, `INSERT INTO t (v) VALUES ('x')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	var n int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}
}

func TestNewSQLite_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := NewSQLite(config.DatabaseConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	if err := s.DB().Ping(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
