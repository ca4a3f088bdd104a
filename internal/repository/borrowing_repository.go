package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/library-reservation/internal/model"
)

// BorrowingRepo stores borrowing requests.  Writes run inside the
// lending transaction; the listings read committed state.
type BorrowingRepo struct{ db *sql.DB }

// NewBorrowingRepo returns a new BorrowingRepo bound to the given database.
func NewBorrowingRepo(db *sql.DB) *BorrowingRepo { return &BorrowingRepo{db: db} }

const borrowingColumns = "id, member_id, book_copy_id, status, borrow_date, due_date, return_date, created_at, updated_at"

func scanBorrowing(row interface{ Scan(...any) error }) (*model.Borrowing, error) {
	var (
		b   model.Borrowing
		ret sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.MemberID, &b.BookCopyID, &b.Status, &b.BorrowDate, &b.DueDate,
		&ret, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ReturnDate = nullTime(ret)
	return &b, nil
}

// CreateTx inserts b and reads back the stored row into it.
func (r *BorrowingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Borrowing) error {
	const q = `INSERT INTO borrowings (member_id, book_copy_id, status, borrow_date, due_date) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.MemberID, b.BookCopyID, string(b.Status), b.BorrowDate, b.DueDate)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanBorrowing(tx.QueryRowContext(ctx, "SELECT "+borrowingColumns+" FROM borrowings WHERE id = ?", id))
	if err != nil {
		return err
	}
	*b = *got
	return nil
}

// GetForUpdateTx reads a borrowing and locks it until tx ends.
func (r *BorrowingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Borrowing, error) {
	return scanBorrowing(tx.QueryRowContext(ctx,
		"SELECT "+borrowingColumns+" FROM borrowings WHERE id = ? FOR UPDATE", id))
}

// ExistsOpenTx reports whether the member already has a PENDING or
// APPROVED borrowing on the copy.
func (r *BorrowingRepo) ExistsOpenTx(ctx context.Context, tx *sql.Tx, memberID, copyID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrowings WHERE member_id = ? AND book_copy_id = ? AND status IN ('PENDING','APPROVED')",
		memberID, copyID).Scan(&n)
	return n > 0, err
}

// UpdateTx writes the mutable columns of b.
func (r *BorrowingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Borrowing) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE borrowings SET status = ?, borrow_date = ?, due_date = ?, return_date = ? WHERE id = ?",
		string(b.Status), b.BorrowDate, b.DueDate, b.ReturnDate, b.ID)
	return err
}

// MarkOverdue moves every APPROVED borrowing due before now to OVERDUE
// and returns how many rows changed.  Running it again with the same
// now changes nothing.
func (r *BorrowingRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE borrowings SET status = 'OVERDUE' WHERE status = 'APPROVED' AND due_date < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BorrowingQuery selects a listing of borrowings.
type BorrowingQuery struct {
	MemberID   uint64 // 0 = every member
	Statuses   []model.BorrowingStatus
	OrderBy    string // one of the borrowingOrders keys
	WithMember bool
}

var borrowingOrders = map[string]string{
	"created":  "br.created_at ASC, br.id ASC",
	"due":      "br.due_date ASC, br.id ASC",
	"recent":   "br.created_at DESC, br.id DESC",
	"returned": "br.updated_at DESC, br.id DESC",
}

// List returns borrowings joined with copy, book, category and member.
func (r *BorrowingRepo) List(ctx context.Context, f BorrowingQuery) ([]model.BorrowingDetail, error) {
	q := `SELECT br.id, br.member_id, br.book_copy_id, br.status, br.borrow_date, br.due_date, br.return_date,
                 br.created_at, br.updated_at,
                 bc.copy_number,
                 b.id, b.title, b.author, b.isbn, b.category_id, c.name,
                 m.id, m.email, m.first_name, m.last_name
          FROM borrowings br
          JOIN book_copies bc ON bc.id = br.book_copy_id
          JOIN books b ON b.id = bc.book_id
          JOIN categories c ON c.id = b.category_id
          JOIN members m ON m.id = br.member_id`
	var (
		where []string
		args  []any
	)
	if f.MemberID != 0 {
		where = append(where, "br.member_id = ?")
		args = append(args, f.MemberID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "br.status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	order, ok := borrowingOrders[f.OrderBy]
	if !ok {
		order = borrowingOrders["recent"]
	}
	q += " ORDER BY " + order

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BorrowingDetail, 0)
	now := time.Now().UTC()
	for rows.Next() {
		var (
			d   model.BorrowingDetail
			ret sql.NullTime
			m   model.AccountSummary
		)
		if err := rows.Scan(&d.ID, &d.MemberID, &d.BookCopyID, &d.Status, &d.BorrowDate, &d.DueDate, &ret,
			&d.CreatedAt, &d.UpdatedAt,
			&d.CopyNumber,
			&d.Book.ID, &d.Book.Title, &d.Book.Author, &d.Book.ISBN, &d.Book.CategoryID, &d.Book.CategoryName,
			&m.ID, &m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, err
		}
		d.ReturnDate = nullTime(ret)
		d.IsOverdue = d.PastDue(now)
		if f.WithMember {
			d.Member = &m
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
