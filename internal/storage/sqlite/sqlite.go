// Package sqlite implements the pipeline storage backend on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskline/taskline/internal/types"
)

// ErrAlreadyFinalized indicates a finalize was attempted on a conversation
// that is already finalized. This is an invariant violation: finalize is not
// idempotent and callers must never invoke it twice for the same key.
var ErrAlreadyFinalized = errors.New("conversation already finalized")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL for concurrent readers; immediate transactions so the
	// find-or-create-and-append in AppendMessage takes the write lock up
	// front instead of failing on upgrade.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// every query sees the same schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// GetStatistics returns aggregate counts for the stats command.
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE finalized = 0").Scan(&stats.BufferedConversations)
	if err != nil {
		return nil, fmt.Errorf("failed to count buffered conversations: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE finalized = 1").Scan(&stats.FinalizedConversations)
	if err != nil {
		return nil, fmt.Errorf("failed to count finalized conversations: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&stats.TotalTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE created_at >= datetime('now', '-48 hours')").Scan(&stats.TasksLast48h)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent tasks: %w", err)
	}

	return stats, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
