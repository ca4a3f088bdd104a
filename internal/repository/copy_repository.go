package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/library-reservation/internal/model"
)

// CopyRepo manages book_copies rows.  Status changes happen only
// inside lending transactions, so the mutating methods take a *sql.Tx.
type CopyRepo struct{ db *sql.DB }

// NewCopyRepo returns a new CopyRepo bound to the given database.
func NewCopyRepo(db *sql.DB) *CopyRepo { return &CopyRepo{db: db} }

const copyColumns = "id, book_id, copy_number, status, created_at, updated_at"

func scanCopy(row interface{ Scan(...any) error }) (*model.BookCopy, error) {
	var c model.BookCopy
	if err := row.Scan(&c.ID, &c.BookID, &c.CopyNumber, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx inserts an AVAILABLE copy with the given number.
func (r *CopyRepo) CreateTx(ctx context.Context, tx *sql.Tx, bookID uint64, number uint32) (*model.BookCopy, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO book_copies (book_id, copy_number, status) VALUES (?, ?, ?)",
		bookID, number, string(model.CopyAvailable))
	if err != nil {
		return nil, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return scanCopy(tx.QueryRowContext(ctx, "SELECT "+copyColumns+" FROM book_copies WHERE id = ?", id))
}

// GetByID returns a copy or sql.ErrNoRows.
func (r *CopyRepo) GetByID(ctx context.Context, id uint64) (*model.BookCopy, error) {
	return scanCopy(r.db.QueryRowContext(ctx, "SELECT "+copyColumns+" FROM book_copies WHERE id = ?", id))
}

// GetTx reads a copy inside tx without locking it.
func (r *CopyRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.BookCopy, error) {
	return scanCopy(tx.QueryRowContext(ctx, "SELECT "+copyColumns+" FROM book_copies WHERE id = ?", id))
}

// GetForUpdateTx reads a copy and locks it until tx ends.
func (r *CopyRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.BookCopy, error) {
	return scanCopy(tx.QueryRowContext(ctx,
		"SELECT "+copyColumns+" FROM book_copies WHERE id = ? FOR UPDATE", id))
}

// FirstAvailableForUpdateTx locks the lowest-numbered AVAILABLE copy of
// a book.  sql.ErrNoRows when every copy is out.
func (r *CopyRepo) FirstAvailableForUpdateTx(ctx context.Context, tx *sql.Tx, bookID uint64) (*model.BookCopy, error) {
	return scanCopy(tx.QueryRowContext(ctx,
		"SELECT "+copyColumns+" FROM book_copies WHERE book_id = ? AND status = 'AVAILABLE' ORDER BY copy_number ASC LIMIT 1 FOR UPDATE",
		bookID))
}

// UpdateStatusTx sets the status of a copy.
func (r *CopyRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.CopyStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE book_copies SET status = ? WHERE id = ?", string(status), id)
	return err
}

// DeleteTx removes a copy.
func (r *CopyRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM book_copies WHERE id = ?", id)
	return err
}

// ListByBooks returns the copies of the given books keyed by book id,
// each slice ordered by copy number.
func (r *CopyRepo) ListByBooks(ctx context.Context, bookIDs []uint64) (map[uint64][]model.BookCopy, error) {
	out := make(map[uint64][]model.BookCopy, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(bookIDs))
	for i, id := range bookIDs {
		args[i] = id
	}
	q := "SELECT " + copyColumns + " FROM book_copies WHERE book_id IN (" + placeholders(len(bookIDs)) + ") ORDER BY book_id, copy_number"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, err
		}
		out[c.BookID] = append(out[c.BookID], *c)
	}
	return out, rows.Err()
}
