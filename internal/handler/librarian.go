package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/model"
)

// LibrarianLending is the librarian-facing part of the lending service.
type LibrarianLending interface {
	Approve(ctx context.Context, borrowingID uint64) (*model.Borrowing, error)
	Reject(ctx context.Context, borrowingID uint64) (*model.Borrowing, error)
	Return(ctx context.Context, borrowingID uint64) (*model.Borrowing, error)
	SweepOverdue(ctx context.Context) (int64, error)
	ApproveReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	RejectReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	PendingBorrowings(ctx context.Context) ([]model.BorrowingDetail, error)
	ActiveBorrowings(ctx context.Context) ([]model.BorrowingDetail, error)
	PendingReservations(ctx context.Context) ([]model.ReservationDetail, error)
}

// LibrarianHandler serves /api/librarians.
type LibrarianHandler struct {
	Lending LibrarianLending
}

func NewLibrarianHandler(lending LibrarianLending) *LibrarianHandler {
	return &LibrarianHandler{Lending: lending}
}

// PendingBorrowings: GET /borrowings/pending
func (h *LibrarianHandler) PendingBorrowings(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	out, err := h.Lending.PendingBorrowings(ctx)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ActiveBorrowings: GET /borrowings/active, soonest due first.
func (h *LibrarianHandler) ActiveBorrowings(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	out, err := h.Lending.ActiveBorrowings(ctx)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// PendingReservations: GET /reservations/pending
func (h *LibrarianHandler) PendingReservations(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	out, err := h.Lending.PendingReservations(ctx)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ApproveBorrowing: PATCH /borrowings/:borrowingId/approve
func (h *LibrarianHandler) ApproveBorrowing(c echo.Context) error {
	return h.borrowing(c, h.Lending.Approve, "Borrowing approved successfully")
}

// RejectBorrowing: PATCH /borrowings/:borrowingId/reject
func (h *LibrarianHandler) RejectBorrowing(c echo.Context) error {
	return h.borrowing(c, h.Lending.Reject, "Borrowing rejected successfully")
}

// ReturnBorrowing: PATCH /borrowings/:borrowingId/return
func (h *LibrarianHandler) ReturnBorrowing(c echo.Context) error {
	return h.borrowing(c, h.Lending.Return, "Book returned successfully")
}

func (h *LibrarianHandler) borrowing(c echo.Context, op func(context.Context, uint64) (*model.Borrowing, error), msg string) error {
	id, ok := pathID(c, "borrowingId")
	if !ok {
		return badID(c, "borrowingId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := op(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "borrowing": b})
}

// ApproveReservation: PATCH /reservations/:reservationId/approve
func (h *LibrarianHandler) ApproveReservation(c echo.Context) error {
	return h.reservation(c, h.Lending.ApproveReservation, "Reservation approved successfully")
}

// RejectReservation: PATCH /reservations/:reservationId/reject
func (h *LibrarianHandler) RejectReservation(c echo.Context) error {
	return h.reservation(c, h.Lending.RejectReservation, "Reservation rejected successfully")
}

func (h *LibrarianHandler) reservation(c echo.Context, op func(context.Context, uint64) (*model.Reservation, error), msg string) error {
	id, ok := pathID(c, "reservationId")
	if !ok {
		return badID(c, "reservationId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := op(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "reservation": r})
}

// UpdateOverdue: POST /borrowings/update-overdue
func (h *LibrarianHandler) UpdateOverdue(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Lending.SweepOverdue(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Overdue borrowings updated", "count": n})
}
