package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-reservation/internal/handler"
	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/utils"
)

const secret = "router-secret"

type activeAccounts struct{}

func (activeAccounts) GetByID(_ context.Context, role model.Role, id uint64) (model.Account, error) {
	base := model.AccountBase{ID: id, IsActive: true}
	if role == model.RoleLibrarian {
		return model.Librarian{AccountBase: base}, nil
	}
	return model.Member{AccountBase: base}, nil
}

type noopCatalog struct{}

func (noopCatalog) SearchBooks(context.Context, string, uint64) ([]model.BookDetail, error) {
	return []model.BookDetail{}, nil
}
func (noopCatalog) GetBook(context.Context, uint64) (*model.BookDetail, error) {
	return &model.BookDetail{}, nil
}
func (noopCatalog) ListCategories(context.Context) ([]model.Category, error) {
	return []model.Category{}, nil
}

func newServer() http.Handler {
	d := Deps{JWTSecret: secret, Accounts: activeAccounts{}}
	e := NewEcho()
	RegisterRoutes(e, d)
	RegisterAuth(e, handler.NewAuthHandler(nil, nil), d)
	RegisterMember(e, handler.NewMemberHandler(nil, noopCatalog{}), d)
	RegisterLibrarian(e, handler.NewLibrarianHandler(nil), d)
	RegisterAdmin(e, handler.NewAdminHandler(nil, nil), d)
	return e
}

func token(t *testing.T, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, utils.Claims{AccountID: 1, Role: role}, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func do(h http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer()
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", "").Code)
	rec := do(srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newServer()
	for _, path := range []string{
		"/api/members/categories",
		"/api/librarians/borrowings/pending",
		"/api/admin/members",
		"/api/auth/me",
	} {
		assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, path, "").Code, path)
	}
}

func TestRoleMismatchIsForbidden(t *testing.T) {
	srv := newServer()
	rec := do(srv, http.MethodGet, "/api/librarians/borrowings/pending", token(t, model.RoleMember))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(srv, http.MethodGet, "/api/admin/books", token(t, model.RoleLibrarian))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberRouteReachesHandler(t *testing.T) {
	srv := newServer()
	rec := do(srv, http.MethodGet, "/api/members/books/search?search=x", token(t, model.RoleMember))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
