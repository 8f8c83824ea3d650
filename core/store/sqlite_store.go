package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local options table. It backs the
// single-node scope, where per-node active lists and the promoted-set cache
// live.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the node-local options database. Pass
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/extpin.db"
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS options (
			name  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) GetList(ctx context.Context, key string) ([]string, error) {
	var out []string
	if err := s.getJSON(ctx, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) PutList(ctx context.Context, key string, vals []string) error {
	return s.putJSON(ctx, key, vals)
}

func (s *SQLiteStore) GetMap(ctx context.Context, key string) (map[string]int64, error) {
	var out map[string]int64
	if err := s.getJSON(ctx, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) PutMap(ctx context.Context, key string, vals map[string]int64) error {
	return s.putJSON(ctx, key, vals)
}

func (s *SQLiteStore) getJSON(ctx context.Context, key string, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *SQLiteStore) putJSON(ctx context.Context, key string, val interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO options (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, key, string(data))
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
