package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/model"
)

// MemberLending is the member-facing part of the lending service.
type MemberLending interface {
	RequestBorrow(ctx context.Context, memberID, copyID uint64) (*model.Borrowing, error)
	Reserve(ctx context.Context, memberID, bookID uint64) (*model.Reservation, error)
	Cancel(ctx context.Context, memberID, reservationID uint64) (*model.Reservation, error)
	MemberActiveBorrowings(ctx context.Context, memberID uint64) ([]model.BorrowingDetail, error)
	MemberBorrowingHistory(ctx context.Context, memberID uint64) ([]model.BorrowingDetail, error)
	MemberActiveReservations(ctx context.Context, memberID uint64) ([]model.ReservationDetail, error)
}

// CatalogReader is the read side of the catalog.
type CatalogReader interface {
	SearchBooks(ctx context.Context, search string, categoryID uint64) ([]model.BookDetail, error)
	GetBook(ctx context.Context, id uint64) (*model.BookDetail, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// MemberHandler serves /api/members.
type MemberHandler struct {
	Lending MemberLending
	Catalog CatalogReader
}

func NewMemberHandler(lending MemberLending, catalog CatalogReader) *MemberHandler {
	return &MemberHandler{Lending: lending, Catalog: catalog}
}

type borrowReq struct {
	BookCopyID uint64 `json:"bookCopyId" validate:"required,gt=0"`
}

type reserveReq struct {
	BookID uint64 `json:"bookId" validate:"required,gt=0"`
}

// SearchBooks: GET /books/search?search=&categoryId=
func (h *MemberHandler) SearchBooks(c echo.Context) error {
	var categoryID uint64
	if raw := strings.TrimSpace(c.QueryParam("categoryId")); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badID(c, "categoryId")
		}
		categoryID = n
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	books, err := h.Catalog.SearchBooks(ctx, c.QueryParam("search"), categoryID)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, books)
}

// GetBook: GET /books/:bookId with copies and availability counts.
func (h *MemberHandler) GetBook(c echo.Context) error {
	id, ok := pathID(c, "bookId")
	if !ok {
		return badID(c, "bookId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	book, err := h.Catalog.GetBook(ctx, id)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

// ListCategories: GET /categories
func (h *MemberHandler) ListCategories(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, cats)
}

// Borrow: POST /borrowings {bookCopyId}
func (h *MemberHandler) Borrow(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	var req borrowReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.Lending.RequestBorrow(ctx, uid, req.BookCopyID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ActiveBorrowings: GET /borrowings/active
func (h *MemberHandler) ActiveBorrowings(c echo.Context) error {
	return h.listBorrowings(c, h.Lending.MemberActiveBorrowings)
}

// BorrowingHistory: GET /borrowings/history
func (h *MemberHandler) BorrowingHistory(c echo.Context) error {
	return h.listBorrowings(c, h.Lending.MemberBorrowingHistory)
}

func (h *MemberHandler) listBorrowings(c echo.Context, list func(context.Context, uint64) ([]model.BorrowingDetail, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	out, err := list(ctx, uid)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Reserve: POST /reservations {bookId}
func (h *MemberHandler) Reserve(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	var req reserveReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.Lending.Reserve(ctx, uid, req.BookID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ActiveReservations: GET /reservations/active
func (h *MemberHandler) ActiveReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	out, err := h.Lending.MemberActiveReservations(ctx, uid)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// CancelReservation: DELETE /reservations/:reservationId
func (h *MemberHandler) CancelReservation(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	id, ok := pathID(c, "reservationId")
	if !ok {
		return badID(c, "reservationId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.Lending.Cancel(ctx, uid, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation cancelled successfully", "reservation": r})
}
