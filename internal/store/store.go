// Package store owns the relational backend: opening the SQLite database,
// creating tables from registered model declarations, and handing out
// explicit sessions that the query compiler and the mutation lifecycle
// thread through every call.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/relstack-labs/relstore/pkg/schema"

	// sqlite driver for the relational backend.
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
}

// Open opens the SQLite database at path. Use ":memory:" for an in-memory
// database.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema creates a table for every given model if it does not exist.
func (s *Store) InitSchema(models ...*schema.Model) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	for _, m := range models {
		ddl := TableDDL(m)
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", m.Table, err)
		}
		s.logger.Debug("created table", "model", m.Name, "table", m.Table)
	}
	return nil
}

// Session returns an auto-commit session backed directly by the database.
func (s *Store) Session() *Session {
	return &Session{db: s.db, logger: s.logger}
}

// Begin starts a transactional session. The caller owns the session until
// Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Session{db: s.db, tx: tx, logger: s.logger}, nil
}

// TableDDL generates the CREATE TABLE statement for a model. Version and
// modification bookkeeping columns are always present.
func TableDDL(m *schema.Model) string {
	var cols []string
	for i := range m.Fields {
		f := &m.Fields[i]
		col := fmt.Sprintf("%s %s", f.Name, columnType(f.Kind))
		if f.PrimaryKey {
			col += " PRIMARY KEY"
		} else {
			if !f.Nullable {
				col += " NOT NULL"
			}
			if f.Unique {
				col += " UNIQUE"
			}
		}
		cols = append(cols, col)
	}
	cols = append(cols,
		"_version INTEGER NOT NULL DEFAULT 0",
		"_updated_at TEXT",
	)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		m.Table, strings.Join(cols, ",\n\t"))
}

// columnType maps a field kind to a SQLite column type. List and map
// fields are stored as JSON text.
func columnType(k schema.Kind) string {
	switch k {
	case schema.KindInt, schema.KindBool:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}
