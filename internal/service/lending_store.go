package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/library-reservation/internal/database"
	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/repository"
)

// SQLLendingStore backs LendingService with the MySQL repositories.
type SQLLendingStore struct {
	db           *sql.DB
	books        *repository.BookRepo
	copies       *repository.CopyRepo
	borrowings   *repository.BorrowingRepo
	reservations *repository.ReservationRepo
}

// NewSQLLendingStore returns a LendingStore over db.
func NewSQLLendingStore(db *sql.DB) *SQLLendingStore {
	return &SQLLendingStore{
		db:           db,
		books:        repository.NewBookRepo(db),
		copies:       repository.NewCopyRepo(db),
		borrowings:   repository.NewBorrowingRepo(db),
		reservations: repository.NewReservationRepo(db),
	}
}

func (s *SQLLendingStore) InTx(ctx context.Context, fn func(tx LendingTx) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&sqlLendingTx{s: s, tx: tx})
	})
}

func (s *SQLLendingStore) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	return s.borrowings.MarkOverdue(ctx, now)
}

func (s *SQLLendingStore) ListBorrowings(ctx context.Context, q repository.BorrowingQuery) ([]model.BorrowingDetail, error) {
	return s.borrowings.List(ctx, q)
}

func (s *SQLLendingStore) ListReservations(ctx context.Context, q repository.ReservationQuery) ([]model.ReservationDetail, error) {
	return s.reservations.List(ctx, q)
}

type sqlLendingTx struct {
	s  *SQLLendingStore
	tx *sql.Tx
}

func (t *sqlLendingTx) LockBook(ctx context.Context, id uint64) (*model.Book, error) {
	return t.s.books.LockTx(ctx, t.tx, id)
}

func (t *sqlLendingTx) FindCopy(ctx context.Context, id uint64) (*model.BookCopy, error) {
	return t.s.copies.GetTx(ctx, t.tx, id)
}

func (t *sqlLendingTx) LockCopy(ctx context.Context, id uint64) (*model.BookCopy, error) {
	return t.s.copies.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlLendingTx) LockFirstAvailableCopy(ctx context.Context, bookID uint64) (*model.BookCopy, error) {
	return t.s.copies.FirstAvailableForUpdateTx(ctx, t.tx, bookID)
}

func (t *sqlLendingTx) SetCopyStatus(ctx context.Context, id uint64, st model.CopyStatus) error {
	return t.s.copies.UpdateStatusTx(ctx, t.tx, id, st)
}

func (t *sqlLendingTx) HasOpenBorrowing(ctx context.Context, memberID, copyID uint64) (bool, error) {
	return t.s.borrowings.ExistsOpenTx(ctx, t.tx, memberID, copyID)
}

func (t *sqlLendingTx) CreateBorrowing(ctx context.Context, b *model.Borrowing) error {
	return t.s.borrowings.CreateTx(ctx, t.tx, b)
}

func (t *sqlLendingTx) LockBorrowing(ctx context.Context, id uint64) (*model.Borrowing, error) {
	return t.s.borrowings.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlLendingTx) SaveBorrowing(ctx context.Context, b *model.Borrowing) error {
	return t.s.borrowings.UpdateTx(ctx, t.tx, b)
}

func (t *sqlLendingTx) HasOpenReservation(ctx context.Context, memberID, bookID uint64) (bool, error) {
	return t.s.reservations.ExistsOpenTx(ctx, t.tx, memberID, bookID)
}

func (t *sqlLendingTx) MaxQueuePosition(ctx context.Context, bookID uint64) (uint32, error) {
	return t.s.reservations.MaxOpenPositionTx(ctx, t.tx, bookID)
}

func (t *sqlLendingTx) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.reservations.CreateTx(ctx, t.tx, r)
}

func (t *sqlLendingTx) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.reservations.GetTx(ctx, t.tx, id)
}

func (t *sqlLendingTx) LockReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlLendingTx) LockNextActiveReservation(ctx context.Context, bookID uint64) (*model.Reservation, error) {
	return t.s.reservations.NextActiveForUpdateTx(ctx, t.tx, bookID)
}

func (t *sqlLendingTx) SetReservationStatus(ctx context.Context, id uint64, st model.ReservationStatus) error {
	return t.s.reservations.UpdateStatusTx(ctx, t.tx, id, st)
}

func (t *sqlLendingTx) AssignCopy(ctx context.Context, reservationID, copyID uint64) error {
	return t.s.reservations.AssignCopyTx(ctx, t.tx, reservationID, copyID)
}

func (t *sqlLendingTx) CompactQueue(ctx context.Context, bookID uint64, after uint32) (int64, error) {
	return t.s.reservations.CompactTx(ctx, t.tx, bookID, after)
}
