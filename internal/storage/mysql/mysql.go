// Package mysql implements storage.Store on top of database/sql with
// the go-sql-driver/mysql driver.  All queries use `?` placeholders
// and UTC timestamps; locked reads use SELECT ... FOR UPDATE.
package mysql

import (
	"context"
	"database/sql"

	"github.com/moimlab/moim-server/internal/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can
// be shared between the plain Store methods and the Tx methods.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements storage.Store against a MySQL database.
type Store struct {
	db *sql.DB
}

// New returns a Store bound to the given database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for auxiliary repositories (users,
// refresh tokens) that live outside the engine's Store interface.
func (s *Store) DB() *sql.DB { return s.db }

// Tx implements storage.Tx for the lifetime of one transaction.
type Tx struct {
	tx *sql.Tx
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Tx)(nil)
)

// InTx begins a transaction, runs fn and commits iff fn returns nil.
// Any error (from fn or from commit) leaves the database untouched.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
