package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const busyTimeoutMillis = 5000

type sqliteBlob struct {
	db *sql.DB
}

// NewSQLite returns a store keeping the job list in <dir>/migrator.db.
func NewSQLite(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	openPath := fmt.Sprintf("%s?_busy_timeout=%d&_txlock=exclusive", filepath.Join(dir, "migrator.db"), busyTimeoutMillis)
	db, err := sql.Open("sqlite3", openPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open store database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return &jobList{b: &sqliteBlob{db: db}}, nil
}

func (s *sqliteBlob) read(ctx context.Context) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, Key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *sqliteBlob) write(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		Key, string(data))
	return err
}

func (s *sqliteBlob) close() error {
	return s.db.Close()
}
