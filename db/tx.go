package db

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

type TxFunc[T any] func(*sqlx.Tx) (T, error)

// Beginner starts transactions; *sqlx.DB and Conn both satisfy it.
type Beginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

func Tx[T any](ctx context.Context, db Beginner, fn TxFunc[T]) (T, error) {
	var zero T
	if db == nil {
		return zero, ErrSQLiteDisabled
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return zero, err
	}
	out, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return out, nil
}
