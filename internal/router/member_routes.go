package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/handler"
	"github.com/iliyamo/library-reservation/internal/middleware"
	"github.com/iliyamo/library-reservation/internal/model"
)

// RegisterMember registers MEMBER endpoints under /api/members.
func RegisterMember(e *echo.Echo, h *handler.MemberHandler, d Deps) {
	g := e.Group("/api/members", guard(d, model.RoleMember)...)

	// ---- Catalog ----
	g.GET("/books/search", h.SearchBooks)
	g.GET("/books/:bookId", h.GetBook)
	g.GET("/categories", h.ListCategories, middleware.NewRedisCache(d.Cache, d.Redis))

	// ---- Borrowings ----
	g.POST("/borrowings", h.Borrow)
	g.GET("/borrowings/active", h.ActiveBorrowings)
	g.GET("/borrowings/history", h.BorrowingHistory)

	// ---- Reservations ----
	g.POST("/reservations", h.Reserve)
	g.GET("/reservations/active", h.ActiveReservations)
	g.DELETE("/reservations/:reservationId", h.CancelReservation)
}
