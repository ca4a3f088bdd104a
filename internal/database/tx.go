package database

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn inside a transaction.  The transaction is committed
// when fn returns nil and rolled back otherwise; fn's error is returned
// unchanged so callers can inspect it with errors.Is/As.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
