// ABOUTME: SQLite implementation of the RowStore interface using modernc.org/sqlite
// ABOUTME: Provides identity-scoped row persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the RowStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. Pass ":memory:" for an
// in-memory database (useful in tests).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agent_rows (
			identity   TEXT NOT NULL,
			row_id     TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (identity, row_id)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// GetRow returns the serialized value for a row, or ErrNotFound.
func (s *SQLiteStore) GetRow(ctx context.Context, identity, rowID string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM agent_rows WHERE identity = ? AND row_id = ?",
		identity, rowID,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying row: %w", err)
	}
	return value, nil
}

// UpsertRow writes the serialized value for a row, replacing any previous value.
func (s *SQLiteStore) UpsertRow(ctx context.Context, identity, rowID, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_rows (identity, row_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(identity, row_id) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, identity, rowID, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting row: %w", err)
	}
	return nil
}

// DeleteRow removes a row. Deleting an absent row is not an error.
func (s *SQLiteStore) DeleteRow(ctx context.Context, identity, rowID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM agent_rows WHERE identity = ? AND row_id = ?",
		identity, rowID,
	)
	if err != nil {
		return fmt.Errorf("deleting row: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
