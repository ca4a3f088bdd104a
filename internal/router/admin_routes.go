package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/handler"
	"github.com/iliyamo/library-reservation/internal/middleware"
	"github.com/iliyamo/library-reservation/internal/model"
)

// RegisterAdmin registers ADMIN endpoints under /api/admin.  Category
// mutations purge the response cache that fronts category listings.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, d Deps) {
	g := e.Group("/api/admin", guard(d, model.RoleAdmin)...)

	// ---- Accounts ----
	g.POST("/members", h.CreateMember)
	g.GET("/members", h.ListMembers)
	g.PATCH("/members/:memberId", h.UpdateMember)

	g.POST("/librarians", h.CreateLibrarian)
	g.GET("/librarians", h.ListLibrarians)
	g.PATCH("/librarians/:librarianId", h.UpdateLibrarian)

	g.POST("/admins", h.CreateAdmin)
	g.GET("/admins", h.ListAdmins)

	g.PATCH("/users/:userId/deactivate", h.DeactivateUser)

	// ---- Categories ----
	purge := middleware.NewCachePurge(d.Cache, d.Redis)
	g.POST("/categories", h.CreateCategory, purge)
	g.GET("/categories", h.ListCategories, middleware.NewRedisCache(d.Cache, d.Redis))
	g.PATCH("/categories/:categoryId", h.UpdateCategory, purge)
	g.DELETE("/categories/:categoryId", h.DeleteCategory, purge)

	// ---- Books ----
	g.POST("/books", h.CreateBook)
	g.GET("/books", h.ListBooks)
	g.GET("/books/:bookId", h.GetBook)
	g.PATCH("/books/:bookId", h.UpdateBook)
	g.DELETE("/books/:bookId", h.DeleteBook)

	// ---- Copies ----
	g.POST("/books/:bookId/copies", h.AddCopy)
	g.DELETE("/book-copies/:bookCopyId", h.RemoveCopy)
}
