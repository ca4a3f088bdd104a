package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/library-reservation/internal/metrics"
	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/queue"
	"github.com/iliyamo/library-reservation/internal/repository"
)

// LoanPeriod is the fixed time between a borrowing request and its due date.
const LoanPeriod = 14 * 24 * time.Hour

// LendingTx is the unit of work a lending operation runs in.  Lock*
// methods read a row and hold an exclusive lock on it until the
// transaction ends; Find* methods read without locking.  Missing rows
// are reported as sql.ErrNoRows.
//
// Locks are always taken book first, then borrowing or reservation,
// then copy, so concurrent operations on one book cannot deadlock.
type LendingTx interface {
	LockBook(ctx context.Context, bookID uint64) (*model.Book, error)

	FindCopy(ctx context.Context, copyID uint64) (*model.BookCopy, error)
	LockCopy(ctx context.Context, copyID uint64) (*model.BookCopy, error)
	LockFirstAvailableCopy(ctx context.Context, bookID uint64) (*model.BookCopy, error)
	SetCopyStatus(ctx context.Context, copyID uint64, s model.CopyStatus) error

	HasOpenBorrowing(ctx context.Context, memberID, copyID uint64) (bool, error)
	CreateBorrowing(ctx context.Context, b *model.Borrowing) error
	LockBorrowing(ctx context.Context, id uint64) (*model.Borrowing, error)
	SaveBorrowing(ctx context.Context, b *model.Borrowing) error

	HasOpenReservation(ctx context.Context, memberID, bookID uint64) (bool, error)
	MaxQueuePosition(ctx context.Context, bookID uint64) (uint32, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	FindReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	LockReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	LockNextActiveReservation(ctx context.Context, bookID uint64) (*model.Reservation, error)
	SetReservationStatus(ctx context.Context, id uint64, s model.ReservationStatus) error
	AssignCopy(ctx context.Context, reservationID, copyID uint64) error
	CompactQueue(ctx context.Context, bookID uint64, after uint32) (int64, error)
}

// LendingStore runs lending transactions and serves the lending listings.
type LendingStore interface {
	InTx(ctx context.Context, fn func(tx LendingTx) error) error
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListBorrowings(ctx context.Context, q repository.BorrowingQuery) ([]model.BorrowingDetail, error)
	ListReservations(ctx context.Context, q repository.ReservationQuery) ([]model.ReservationDetail, error)
}

// LendingService owns borrowings, reservations and the status of book
// copies.  Every mutating operation runs in one transaction; events are
// published only after it commits.
type LendingService struct {
	store  LendingStore
	events EventPublisher
	now    func() time.Time
}

// NewLendingService wires the lending lifecycle.  A nil publisher drops events.
func NewLendingService(store LendingStore, events EventPublisher) *LendingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &LendingService{store: store, events: events, now: func() time.Time { return time.Now().UTC() }}
}

// run executes fn in a transaction and records the outcome.  Events are
// published in order once the transaction has committed.
func (s *LendingService) run(ctx context.Context, op string, fn func(tx LendingTx) ([]queue.LendingEvent, error)) error {
	var events []queue.LendingEvent
	err := s.store.InTx(ctx, func(tx LendingTx) error {
		var err error
		events, err = fn(tx)
		return err
	})
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.LendingOperations.WithLabelValues(op, outcome).Inc()
	if err != nil {
		return err
	}
	for _, ev := range events {
		slog.Info("lending transition", "op", op, "event", ev.Type, "event_id", ev.EventID)
		publish(s.events, ev)
	}
	return nil
}

// notFound turns sql.ErrNoRows into a NotFound error with msg.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return newErr(KindNotFound, "%s", msg)
	}
	return err
}

var errCopyState = newErr(KindInvalidState, "Book copy is not in the expected status")

// RequestBorrow asks for a specific copy.  The copy must be AVAILABLE
// and the member must not already hold an open borrowing on it.
func (s *LendingService) RequestBorrow(ctx context.Context, memberID, copyID uint64) (*model.Borrowing, error) {
	var out *model.Borrowing
	err := s.run(ctx, "request_borrow", func(tx LendingTx) ([]queue.LendingEvent, error) {
		c, err := tx.LockCopy(ctx, copyID)
		if err != nil {
			return nil, notFound(err, "Book copy not found")
		}
		next, ok := c.Status.Apply(model.CopyRequest)
		if !ok {
			return nil, newErr(KindInvalidState, "Book copy is not available for borrowing")
		}
		open, err := tx.HasOpenBorrowing(ctx, memberID, copyID)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, newErr(KindConflict, "You already have a pending or active borrowing for this book copy")
		}
		now := s.now()
		b := &model.Borrowing{
			MemberID:   memberID,
			BookCopyID: copyID,
			Status:     model.BorrowingPending,
			BorrowDate: now,
			DueDate:    now.Add(LoanPeriod),
		}
		if err := tx.CreateBorrowing(ctx, b); err != nil {
			return nil, err
		}
		if err := tx.SetCopyStatus(ctx, copyID, next); err != nil {
			return nil, err
		}
		out = b
		ev := queue.NewEvent(queue.BorrowingRequested)
		ev.MemberID, ev.BookID, ev.BookCopyID, ev.BorrowingID = memberID, c.BookID, copyID, b.ID
		return []queue.LendingEvent{ev}, nil
	})
	return out, err
}

// Approve lends the copy of a pending borrowing.
func (s *LendingService) Approve(ctx context.Context, borrowingID uint64) (*model.Borrowing, error) {
	return s.settle(ctx, "approve_borrowing", borrowingID, model.BorrowApprove, model.CopyLend, queue.BorrowingApproved)
}

// Reject refuses a pending borrowing and frees its copy.
func (s *LendingService) Reject(ctx context.Context, borrowingID uint64) (*model.Borrowing, error) {
	return s.settle(ctx, "reject_borrowing", borrowingID, model.BorrowReject, model.CopyRelease, queue.BorrowingRejected)
}

// settle applies a librarian decision on a pending borrowing together
// with the matching copy transition.
func (s *LendingService) settle(ctx context.Context, op string, id uint64, bev model.BorrowingEvent, cev model.CopyEvent, et queue.EventType) (*model.Borrowing, error) {
	var out *model.Borrowing
	err := s.run(ctx, op, func(tx LendingTx) ([]queue.LendingEvent, error) {
		b, err := tx.LockBorrowing(ctx, id)
		if err != nil {
			return nil, notFound(err, "Borrowing request not found")
		}
		next, ok := b.Status.Apply(bev)
		if !ok {
			return nil, newErr(KindInvalidState, "Borrowing request is not pending")
		}
		c, err := tx.LockCopy(ctx, b.BookCopyID)
		if err != nil {
			return nil, notFound(err, "Book copy not found")
		}
		cnext, ok := c.Status.Apply(cev)
		if !ok {
			return nil, errCopyState
		}
		b.Status = next
		if bev == model.BorrowApprove {
			b.BorrowDate = s.now()
		}
		if err := tx.SaveBorrowing(ctx, b); err != nil {
			return nil, err
		}
		if err := tx.SetCopyStatus(ctx, c.ID, cnext); err != nil {
			return nil, err
		}
		out = b
		ev := queue.NewEvent(et)
		ev.MemberID, ev.BookID, ev.BookCopyID, ev.BorrowingID = b.MemberID, c.BookID, c.ID, b.ID
		return []queue.LendingEvent{ev}, nil
	})
	return out, err
}

// Return closes an approved borrowing.  The copy goes to the earliest
// ACTIVE reservation for its book that is not already holding a copy;
// the reservations queued behind that one move up by one position.
// With nobody waiting the copy goes back on the shelf.
func (s *LendingService) Return(ctx context.Context, borrowingID uint64) (*model.Borrowing, error) {
	var out *model.Borrowing
	err := s.run(ctx, "return_borrowing", func(tx LendingTx) ([]queue.LendingEvent, error) {
		b, err := tx.LockBorrowing(ctx, borrowingID)
		if err != nil {
			return nil, notFound(err, "Borrowing not found")
		}
		next, ok := b.Status.Apply(model.BorrowReturn)
		if !ok {
			return nil, newErr(KindInvalidState, "Only approved borrowings can be returned")
		}
		c, err := tx.FindCopy(ctx, b.BookCopyID)
		if err != nil {
			return nil, notFound(err, "Book copy not found")
		}
		if _, err := tx.LockBook(ctx, c.BookID); err != nil {
			return nil, notFound(err, "Book not found")
		}
		if c, err = tx.LockCopy(ctx, c.ID); err != nil {
			return nil, notFound(err, "Book copy not found")
		}

		now := s.now()
		b.Status = next
		b.ReturnDate = &now
		if err := tx.SaveBorrowing(ctx, b); err != nil {
			return nil, err
		}
		ev := queue.NewEvent(queue.BorrowingReturned)
		ev.MemberID, ev.BookID, ev.BookCopyID, ev.BorrowingID = b.MemberID, c.BookID, c.ID, b.ID
		events := []queue.LendingEvent{ev}

		head, err := tx.LockNextActiveReservation(ctx, c.BookID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			cnext, ok := c.Status.Apply(model.CopyShelve)
			if !ok {
				return nil, errCopyState
			}
			if err := tx.SetCopyStatus(ctx, c.ID, cnext); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			cnext, ok := c.Status.Apply(model.CopyHandoff)
			if !ok {
				return nil, errCopyState
			}
			if err := tx.SetCopyStatus(ctx, c.ID, cnext); err != nil {
				return nil, err
			}
			if err := tx.AssignCopy(ctx, head.ID, c.ID); err != nil {
				return nil, err
			}
			if _, err := tx.CompactQueue(ctx, c.BookID, head.QueuePosition); err != nil {
				return nil, err
			}
			hev := queue.NewEvent(queue.ReservationCopyAssigned)
			hev.MemberID, hev.BookID, hev.BookCopyID = head.MemberID, c.BookID, c.ID
			hev.ReservationID, hev.QueuePosition = head.ID, head.QueuePosition
			events = append(events, hev)
		}
		out = b
		return events, nil
	})
	return out, err
}

// SweepOverdue marks every approved borrowing past its due date as
// OVERDUE and returns how many changed.
func (s *LendingService) SweepOverdue(ctx context.Context) (int64, error) {
	n, err := s.store.MarkOverdue(ctx, s.now())
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.LendingOperations.WithLabelValues("sweep_overdue", outcome).Inc()
	if err != nil {
		return 0, err
	}
	metrics.OverdueMarked.Add(float64(n))
	slog.Info("overdue sweep finished", "count", n)
	ev := queue.NewEvent(queue.BorrowingOverdue)
	ev.Count = n
	publish(s.events, ev)
	return n, nil
}

// Reserve appends the member to the book's queue.  Reserving is allowed
// while copies are on the shelf.
func (s *LendingService) Reserve(ctx context.Context, memberID, bookID uint64) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.run(ctx, "reserve", func(tx LendingTx) ([]queue.LendingEvent, error) {
		if _, err := tx.LockBook(ctx, bookID); err != nil {
			return nil, notFound(err, "Book not found")
		}
		open, err := tx.HasOpenReservation(ctx, memberID, bookID)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, newErr(KindConflict, "You already have an active reservation for this book")
		}
		last, err := tx.MaxQueuePosition(ctx, bookID)
		if err != nil {
			return nil, err
		}
		r := &model.Reservation{
			MemberID:      memberID,
			BookID:        bookID,
			Status:        model.ReservationPending,
			QueuePosition: last + 1,
		}
		if err := tx.CreateReservation(ctx, r); err != nil {
			return nil, err
		}
		out = r
		ev := queue.NewEvent(queue.ReservationCreated)
		ev.MemberID, ev.BookID, ev.ReservationID, ev.QueuePosition = memberID, bookID, r.ID, r.QueuePosition
		return []queue.LendingEvent{ev}, nil
	})
	return out, err
}

// lockReservation locks the reservation's book and then the reservation.
func lockReservation(ctx context.Context, tx LendingTx, id uint64, missing string) (*model.Reservation, error) {
	r, err := tx.FindReservation(ctx, id)
	if err != nil {
		return nil, notFound(err, missing)
	}
	if _, err := tx.LockBook(ctx, r.BookID); err != nil {
		return nil, notFound(err, "Book not found")
	}
	r, err = tx.LockReservation(ctx, id)
	if err != nil {
		return nil, notFound(err, missing)
	}
	return r, nil
}

// ApproveReservation activates a pending reservation.  If a copy of the
// book is on the shelf it is claimed for the member straight away.
func (s *LendingService) ApproveReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.run(ctx, "approve_reservation", func(tx LendingTx) ([]queue.LendingEvent, error) {
		r, err := lockReservation(ctx, tx, id, "Reservation request not found")
		if err != nil {
			return nil, err
		}
		next, ok := r.Status.Apply(model.ReserveApprove)
		if !ok {
			return nil, newErr(KindInvalidState, "Reservation request is not pending")
		}
		if err := tx.SetReservationStatus(ctx, r.ID, next); err != nil {
			return nil, err
		}
		r.Status = next
		ev := queue.NewEvent(queue.ReservationApproved)
		ev.MemberID, ev.BookID, ev.ReservationID, ev.QueuePosition = r.MemberID, r.BookID, r.ID, r.QueuePosition

		c, err := tx.LockFirstAvailableCopy(ctx, r.BookID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// nothing on the shelf; the member waits in the queue
		case err != nil:
			return nil, err
		default:
			cnext, ok := c.Status.Apply(model.CopyClaim)
			if !ok {
				return nil, errCopyState
			}
			if err := tx.SetCopyStatus(ctx, c.ID, cnext); err != nil {
				return nil, err
			}
			if err := tx.AssignCopy(ctx, r.ID, c.ID); err != nil {
				return nil, err
			}
			copyID := c.ID
			r.AssignedCopyID = &copyID
			ev.BookCopyID = c.ID
		}
		out = r
		return []queue.LendingEvent{ev}, nil
	})
	return out, err
}

// RejectReservation cancels a pending reservation and closes its gap in
// the queue.
func (s *LendingService) RejectReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.run(ctx, "reject_reservation", func(tx LendingTx) ([]queue.LendingEvent, error) {
		r, err := lockReservation(ctx, tx, id, "Reservation request not found")
		if err != nil {
			return nil, err
		}
		next, ok := r.Status.Apply(model.ReserveReject)
		if !ok {
			return nil, newErr(KindInvalidState, "Reservation request is not pending")
		}
		if err := s.leaveQueue(ctx, tx, r, next); err != nil {
			return nil, err
		}
		out = r
		ev := queue.NewEvent(queue.ReservationRejected)
		ev.MemberID, ev.BookID, ev.ReservationID, ev.QueuePosition = r.MemberID, r.BookID, r.ID, r.QueuePosition
		return []queue.LendingEvent{ev}, nil
	})
	return out, err
}

// Cancel withdraws a member's own reservation.  A copy held for it goes
// back on the shelf.
func (s *LendingService) Cancel(ctx context.Context, memberID, id uint64) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.run(ctx, "cancel_reservation", func(tx LendingTx) ([]queue.LendingEvent, error) {
		r, err := lockReservation(ctx, tx, id, "Reservation not found")
		if err != nil {
			return nil, err
		}
		if r.MemberID != memberID {
			return nil, newErr(KindForbidden, "Unauthorized: This reservation does not belong to you")
		}
		next, ok := r.Status.Apply(model.ReserveCancel)
		if !ok {
			return nil, newErr(KindInvalidState, "Cannot cancel a completed or already cancelled reservation")
		}
		held := r.AssignedCopyID
		if held != nil {
			c, err := tx.LockCopy(ctx, *held)
			if err != nil {
				return nil, notFound(err, "Book copy not found")
			}
			// the copy may already have been lent out at the desk
			if cnext, ok := c.Status.Apply(model.CopyRelease); ok {
				if err := tx.SetCopyStatus(ctx, c.ID, cnext); err != nil {
					return nil, err
				}
			}
		}
		if err := s.leaveQueue(ctx, tx, r, next); err != nil {
			return nil, err
		}
		out = r
		ev := queue.NewEvent(queue.ReservationCancelled)
		ev.MemberID, ev.BookID, ev.ReservationID, ev.QueuePosition = r.MemberID, r.BookID, r.ID, r.QueuePosition
		if held != nil {
			ev.BookCopyID = *held
		}
		return []queue.LendingEvent{ev}, nil
	})
	return out, err
}

// leaveQueue moves r to status next and shifts every open reservation
// queued behind it up by one.
func (s *LendingService) leaveQueue(ctx context.Context, tx LendingTx, r *model.Reservation, next model.ReservationStatus) error {
	if err := tx.SetReservationStatus(ctx, r.ID, next); err != nil {
		return err
	}
	r.Status = next
	_, err := tx.CompactQueue(ctx, r.BookID, r.QueuePosition)
	return err
}

// MemberActiveBorrowings lists the member's PENDING and APPROVED borrowings.
func (s *LendingService) MemberActiveBorrowings(ctx context.Context, memberID uint64) ([]model.BorrowingDetail, error) {
	return s.store.ListBorrowings(ctx, repository.BorrowingQuery{
		MemberID: memberID,
		Statuses: []model.BorrowingStatus{model.BorrowingPending, model.BorrowingApproved},
		OrderBy:  "recent",
	})
}

// MemberBorrowingHistory lists the member's RETURNED and OVERDUE borrowings.
func (s *LendingService) MemberBorrowingHistory(ctx context.Context, memberID uint64) ([]model.BorrowingDetail, error) {
	return s.store.ListBorrowings(ctx, repository.BorrowingQuery{
		MemberID: memberID,
		Statuses: []model.BorrowingStatus{model.BorrowingReturned, model.BorrowingOverdue},
		OrderBy:  "returned",
	})
}

// MemberActiveReservations lists the member's open reservations by queue position.
func (s *LendingService) MemberActiveReservations(ctx context.Context, memberID uint64) ([]model.ReservationDetail, error) {
	return s.store.ListReservations(ctx, repository.ReservationQuery{
		MemberID: memberID,
		Statuses: []model.ReservationStatus{model.ReservationPending, model.ReservationActive},
	})
}

// PendingBorrowings lists requests waiting for a librarian, oldest first.
func (s *LendingService) PendingBorrowings(ctx context.Context) ([]model.BorrowingDetail, error) {
	return s.store.ListBorrowings(ctx, repository.BorrowingQuery{
		Statuses:   []model.BorrowingStatus{model.BorrowingPending},
		OrderBy:    "created",
		WithMember: true,
	})
}

// ActiveBorrowings lists approved borrowings, soonest due first.
func (s *LendingService) ActiveBorrowings(ctx context.Context) ([]model.BorrowingDetail, error) {
	return s.store.ListBorrowings(ctx, repository.BorrowingQuery{
		Statuses:   []model.BorrowingStatus{model.BorrowingApproved},
		OrderBy:    "due",
		WithMember: true,
	})
}

// PendingReservations lists reservations waiting for a librarian.
func (s *LendingService) PendingReservations(ctx context.Context) ([]model.ReservationDetail, error) {
	return s.store.ListReservations(ctx, repository.ReservationQuery{
		Statuses:   []model.ReservationStatus{model.ReservationPending},
		WithMember: true,
	})
}
