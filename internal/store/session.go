package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Session is an explicit database handle threaded through every compiler
// and lifecycle call. It is either auto-commit (backed by the pool) or
// transactional (backed by one transaction), and is exclusively owned by
// the current request until committed or rolled back.
type Session struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// ExecContext executes a statement.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query returning rows.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query returning at most one row.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRowContext(ctx, query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}

// Commit commits the transaction. It is an error on an auto-commit session.
func (s *Session) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("commit on non-transactional session")
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.tx = nil
	return nil
}

// Rollback rolls the transaction back. Safe to defer: a no-op after Commit
// or on an auto-commit session.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
