package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/handler"
	"github.com/iliyamo/library-reservation/internal/model"
)

// RegisterLibrarian registers LIBRARIAN endpoints under /api/librarians.
func RegisterLibrarian(e *echo.Echo, h *handler.LibrarianHandler, d Deps) {
	g := e.Group("/api/librarians", guard(d, model.RoleLibrarian)...)

	g.GET("/borrowings/pending", h.PendingBorrowings)
	g.GET("/borrowings/active", h.ActiveBorrowings)
	g.GET("/reservations/pending", h.PendingReservations)

	g.PATCH("/borrowings/:borrowingId/approve", h.ApproveBorrowing)
	g.PATCH("/borrowings/:borrowingId/reject", h.RejectBorrowing)
	g.PATCH("/borrowings/:borrowingId/return", h.ReturnBorrowing)

	g.PATCH("/reservations/:reservationId/approve", h.ApproveReservation)
	g.PATCH("/reservations/:reservationId/reject", h.RejectReservation)

	g.POST("/borrowings/update-overdue", h.UpdateOverdue)
}
