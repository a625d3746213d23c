// Package repo contains all database access logic for the tagstore API.
// Each concern has its own file with an interface and a Postgres implementation.
// No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the minimal interface satisfied by *pgxpool.Pool and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows
// integration tests to pass a transaction that is rolled back after each
// test, giving free per-test isolation without any manual cleanup.
// Begin on a pgx.Tx opens a savepoint, so nesting works transparently.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store bundles the per-concern repositories behind one handle and provides
// transaction scoping. Every mutating service operation runs inside InTx so
// that current-state changes and history appends commit or roll back as a
// unit — the core invariant of the versioning model.
type Store interface {
	Tags() TagRepo
	History() HistoryRepo
	Auth() AuthRepo

	// InTx runs fn inside a single transaction. The Store passed to fn is
	// bound to that transaction. A nil return commits; any error (or panic)
	// rolls back and no partial write survives.
	InTx(ctx context.Context, fn func(Store) error) error
}

// pgStore is the Postgres implementation of Store.
type pgStore struct {
	db DB
}

// NewStore constructs a Store over the provided connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewStore(db DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Tags() TagRepo         { return &pgTagRepo{db: s.db} }
func (s *pgStore) History() HistoryRepo  { return &pgHistoryRepo{db: s.db} }
func (s *pgStore) Auth() AuthRepo        { return &pgAuthRepo{db: s.db} }

func (s *pgStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.Store.InTx: begin: %w", err)
	}
	// Rollback after a successful commit is a harmless no-op; this defer is
	// the single exit path guaranteeing release on error and panic alike.
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.Store.InTx: commit: %w", err)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505). This is how a lost create race surfaces.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
