package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/library-reservation/internal/model"
)

// ReservationRepo stores the per-book reservation queues.  Queue
// positions are only ever changed inside a transaction that holds the
// book's row lock (see BookRepo.LockTx), which keeps them contiguous.
type ReservationRepo struct{ db *sql.DB }

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = "id, member_id, book_id, status, queue_position, assigned_copy_id, created_at, updated_at"

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		r      model.Reservation
		copyID sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.MemberID, &r.BookID, &r.Status, &r.QueuePosition, &copyID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.AssignedCopyID = nullID(copyID)
	return &r, nil
}

// CreateTx inserts res and reads back the stored row into it.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (member_id, book_id, status, queue_position) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.MemberID, res.BookID, string(res.Status), res.QueuePosition)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanReservation(tx.QueryRowContext(ctx, "SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id))
	if err != nil {
		return err
	}
	*res = *got
	return nil
}

// GetTx reads a reservation without locking it.
func (r *ReservationRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id))
}

// GetForUpdateTx reads a reservation and locks it until tx ends.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ? FOR UPDATE", id))
}

// ExistsOpenTx reports whether the member already holds a PENDING or
// ACTIVE reservation for the book.
func (r *ReservationRepo) ExistsOpenTx(ctx context.Context, tx *sql.Tx, memberID, bookID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reservations WHERE member_id = ? AND book_id = ? AND status IN ('PENDING','ACTIVE')",
		memberID, bookID).Scan(&n)
	return n > 0, err
}

// MaxOpenPositionTx returns the largest queue position among the book's
// open reservations, or 0 when the queue is empty.
func (r *ReservationRepo) MaxOpenPositionTx(ctx context.Context, tx *sql.Tx, bookID uint64) (uint32, error) {
	var top sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(queue_position) FROM reservations WHERE book_id = ? AND status IN ('PENDING','ACTIVE')",
		bookID).Scan(&top)
	if err != nil {
		return 0, err
	}
	if !top.Valid {
		return 0, nil
	}
	return uint32(top.Int64), nil
}

// NextActiveForUpdateTx locks the ACTIVE reservation with the lowest
// queue position for the book that does not already hold a copy.
// sql.ErrNoRows when nobody is waiting.
func (r *ReservationRepo) NextActiveForUpdateTx(ctx context.Context, tx *sql.Tx, bookID uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE book_id = ? AND status = 'ACTIVE' AND assigned_copy_id IS NULL ORDER BY queue_position ASC LIMIT 1 FOR UPDATE",
		bookID))
}

// UpdateStatusTx sets the status of a reservation.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus) error {
	_, err := tx.ExecContext(ctx, "UPDATE reservations SET status = ? WHERE id = ?", string(status), id)
	return err
}

// AssignCopyTx records the copy held for a reservation.
func (r *ReservationRepo) AssignCopyTx(ctx context.Context, tx *sql.Tx, id, copyID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE reservations SET assigned_copy_id = ? WHERE id = ?", copyID, id)
	return err
}

// CompactTx closes the gap left at position after: every open
// reservation of the book queued behind it moves up by one.
func (r *ReservationRepo) CompactTx(ctx context.Context, tx *sql.Tx, bookID uint64, after uint32) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservations SET queue_position = queue_position - 1 WHERE book_id = ? AND status IN ('PENDING','ACTIVE') AND queue_position > ?",
		bookID, after)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReservationQuery selects a listing of reservations.
type ReservationQuery struct {
	MemberID   uint64 // 0 = every member
	Statuses   []model.ReservationStatus
	WithMember bool
}

// List returns reservations joined with book, category and member,
// ordered by queue position and then arrival.
func (r *ReservationRepo) List(ctx context.Context, f ReservationQuery) ([]model.ReservationDetail, error) {
	q := `SELECT rv.id, rv.member_id, rv.book_id, rv.status, rv.queue_position, rv.assigned_copy_id,
                 rv.created_at, rv.updated_at,
                 b.id, b.title, b.author, b.isbn, b.category_id, c.name,
                 m.id, m.email, m.first_name, m.last_name
          FROM reservations rv
          JOIN books b ON b.id = rv.book_id
          JOIN categories c ON c.id = b.category_id
          JOIN members m ON m.id = rv.member_id`
	var (
		where []string
		args  []any
	)
	if f.MemberID != 0 {
		where = append(where, "rv.member_id = ?")
		args = append(args, f.MemberID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "rv.status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY rv.queue_position ASC, rv.created_at ASC, rv.id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ReservationDetail, 0)
	for rows.Next() {
		var (
			d      model.ReservationDetail
			m      model.AccountSummary
			copyID sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &d.MemberID, &d.BookID, &d.Status, &d.QueuePosition, &copyID,
			&d.CreatedAt, &d.UpdatedAt,
			&d.Book.ID, &d.Book.Title, &d.Book.Author, &d.Book.ISBN, &d.Book.CategoryID, &d.Book.CategoryName,
			&m.ID, &m.Email, &m.FirstName, &m.LastName); err != nil {
			return nil, err
		}
		d.AssignedCopyID = nullID(copyID)
		if f.WithMember {
			d.Member = &m
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
