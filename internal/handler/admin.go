package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/service"
)

// Directory manages accounts of every role.
type Directory interface {
	Create(ctx context.Context, role model.Role, in service.AccountInput) (model.Account, error)
	Get(ctx context.Context, role model.Role, id uint64) (model.Account, error)
	List(ctx context.Context, role model.Role) ([]model.Profile, error)
	Update(ctx context.Context, role model.Role, id uint64, p service.AccountPatch) (model.Account, error)
	Deactivate(ctx context.Context, role model.Role, id uint64) error
}

// CatalogAdmin is the full catalog service.
type CatalogAdmin interface {
	CreateCategory(ctx context.Context, name string, description *string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id uint64, p service.CategoryPatch) (*model.Category, error)
	DeleteCategory(ctx context.Context, id uint64) error
	CreateBook(ctx context.Context, in service.BookInput) (*model.BookDetail, error)
	ListBooks(ctx context.Context) ([]model.BookDetail, error)
	GetBook(ctx context.Context, id uint64) (*model.BookDetail, error)
	UpdateBook(ctx context.Context, id uint64, p service.BookPatch) (*model.BookDetail, error)
	DeleteBook(ctx context.Context, id uint64) error
	AddCopy(ctx context.Context, bookID uint64) (*model.BookCopy, error)
	RemoveCopy(ctx context.Context, copyID uint64) error
}

// AdminHandler serves /api/admin.
type AdminHandler struct {
	Directory Directory
	Catalog   CatalogAdmin
}

func NewAdminHandler(directory Directory, catalog CatalogAdmin) *AdminHandler {
	return &AdminHandler{Directory: directory, Catalog: catalog}
}

type createAccountReq struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,max=72"`
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
}

type updateAccountReq struct {
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
	IsActive  *bool   `json:"isActive"`
}

type deactivateReq struct {
	Role string `json:"role" validate:"required"`
}

type categoryReq struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description"`
}

type categoryPatchReq struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description"`
}

type bookReq struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Author      string  `json:"author" validate:"required,max=255"`
	ISBN        string  `json:"isbn" validate:"required,max=20"`
	Description *string `json:"description"`
	CategoryID  uint64  `json:"categoryId" validate:"required,gt=0"`
}

type bookPatchReq struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Author      *string `json:"author" validate:"omitempty,max=255"`
	ISBN        *string `json:"isbn" validate:"omitempty,max=20"`
	Description *string `json:"description"`
	CategoryID  *uint64 `json:"categoryId" validate:"omitempty,gt=0"`
}

// accountKey is the response key for a single account of role.
var accountKey = map[model.Role]string{
	model.RoleMember:    "member",
	model.RoleLibrarian: "librarian",
	model.RoleAdmin:     "admin",
}

var accountLabel = map[model.Role]string{
	model.RoleMember:    "Member",
	model.RoleLibrarian: "Librarian",
	model.RoleAdmin:     "Admin",
}

// ---- Accounts ----

func (h *AdminHandler) CreateMember(c echo.Context) error {
	return h.createAccount(c, model.RoleMember)
}

func (h *AdminHandler) CreateLibrarian(c echo.Context) error {
	return h.createAccount(c, model.RoleLibrarian)
}

func (h *AdminHandler) CreateAdmin(c echo.Context) error {
	return h.createAccount(c, model.RoleAdmin)
}

func (h *AdminHandler) createAccount(c echo.Context, role model.Role) error {
	var req createAccountReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Directory.Create(ctx, role, service.AccountInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":        accountLabel[role] + " created successfully",
		accountKey[role]: a.Profile(),
	})
}

func (h *AdminHandler) ListMembers(c echo.Context) error {
	return h.listAccounts(c, model.RoleMember)
}

func (h *AdminHandler) ListLibrarians(c echo.Context) error {
	return h.listAccounts(c, model.RoleLibrarian)
}

func (h *AdminHandler) ListAdmins(c echo.Context) error {
	return h.listAccounts(c, model.RoleAdmin)
}

func (h *AdminHandler) listAccounts(c echo.Context, role model.Role) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	out, err := h.Directory.List(ctx, role)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateMember: PATCH /members/:memberId
func (h *AdminHandler) UpdateMember(c echo.Context) error {
	return h.updateAccount(c, model.RoleMember, "memberId")
}

// UpdateLibrarian: PATCH /librarians/:librarianId
func (h *AdminHandler) UpdateLibrarian(c echo.Context) error {
	return h.updateAccount(c, model.RoleLibrarian, "librarianId")
}

func (h *AdminHandler) updateAccount(c echo.Context, role model.Role, param string) error {
	id, ok := pathID(c, param)
	if !ok {
		return badID(c, param)
	}
	var req updateAccountReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Directory.Update(ctx, role, id, service.AccountPatch{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        accountLabel[role] + " updated successfully",
		accountKey[role]: a.Profile(),
	})
}

// DeactivateUser: PATCH /users/:userId/deactivate {role}
func (h *AdminHandler) DeactivateUser(c echo.Context) error {
	id, ok := pathID(c, "userId")
	if !ok {
		return badID(c, "userId")
	}
	var req deactivateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}
	if req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Role is required"})
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid role"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Directory.Deactivate(ctx, role, id); err != nil {
		return fail(c, err)
	}
	a, err := h.Directory.Get(ctx, role, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deactivated successfully", "user": a.Profile()})
}

// ---- Categories ----

func (h *AdminHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cat, err := h.Catalog.CreateCategory(ctx, req.Name, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Category created successfully", "category": cat})
}

func (h *AdminHandler) ListCategories(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *AdminHandler) UpdateCategory(c echo.Context) error {
	id, ok := pathID(c, "categoryId")
	if !ok {
		return badID(c, "categoryId")
	}
	var req categoryPatchReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cat, err := h.Catalog.UpdateCategory(ctx, id, service.CategoryPatch{Name: req.Name, Description: req.Description})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Category updated successfully", "category": cat})
}

func (h *AdminHandler) DeleteCategory(c echo.Context) error {
	id, ok := pathID(c, "categoryId")
	if !ok {
		return badID(c, "categoryId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Catalog.DeleteCategory(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Category deleted successfully"})
}

// ---- Books ----

func (h *AdminHandler) CreateBook(c echo.Context) error {
	var req bookReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	book, err := h.Catalog.CreateBook(ctx, service.BookInput{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Book created successfully", "book": book})
}

func (h *AdminHandler) ListBooks(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	books, err := h.Catalog.ListBooks(ctx)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *AdminHandler) GetBook(c echo.Context) error {
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

func (h *AdminHandler) UpdateBook(c echo.Context) error {
	id, ok := pathID(c, "bookId")
	if !ok {
		return badID(c, "bookId")
	}
	var req bookPatchReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	book, err := h.Catalog.UpdateBook(ctx, id, service.BookPatch{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Book updated successfully", "book": book})
}

func (h *AdminHandler) DeleteBook(c echo.Context) error {
	id, ok := pathID(c, "bookId")
	if !ok {
		return badID(c, "bookId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Catalog.DeleteBook(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Book deleted successfully"})
}

// ---- Copies ----

// AddCopy: POST /books/:bookId/copies
func (h *AdminHandler) AddCopy(c echo.Context) error {
	id, ok := pathID(c, "bookId")
	if !ok {
		return badID(c, "bookId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cp, err := h.Catalog.AddCopy(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Book copy added successfully", "bookCopy": cp})
}

// RemoveCopy: DELETE /book-copies/:bookCopyId
func (h *AdminHandler) RemoveCopy(c echo.Context) error {
	id, ok := pathID(c, "bookCopyId")
	if !ok {
		return badID(c, "bookCopyId")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Catalog.RemoveCopy(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Book copy removed successfully"})
}
