package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/service"
)

type fakeAuth struct {
	err       error
	gotEmail  string
	gotRole   model.Role
	gotInput  service.AccountInput
	loggedOut string
}

func (f *fakeAuth) session() *service.Session {
	return &service.Session{
		User:         model.Profile{ID: 1, Email: "ann@example.com", Role: model.RoleMember, IsActive: true},
		Token:        "access",
		RefreshToken: "refresh",
	}
}

func (f *fakeAuth) Login(_ context.Context, email, _ string, role model.Role) (*service.Session, error) {
	f.gotEmail, f.gotRole = email, role
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeAuth) Register(_ context.Context, in service.AccountInput) (*service.Session, error) {
	f.gotInput = in
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeAuth) Refresh(context.Context, string) (*service.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeAuth) Logout(_ context.Context, raw string) error {
	f.loggedOut = raw
	return f.err
}

type fakeAccounts map[uint64]model.Account

func (f fakeAccounts) Get(_ context.Context, _ model.Role, id uint64) (model.Account, error) {
	if a, ok := f[id]; ok {
		return a, nil
	}
	return nil, svcErr(service.KindNotFound, "Member not found")
}

func TestLoginOK(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"pw","role":"member"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RoleMember, auth.gotRole)
	body := decode(t, rec)
	assert.Equal(t, "access", body["token"])
	assert.Equal(t, "ann@example.com", body["user"].(map[string]any)["email"])
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{}, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"pw","role":"OWNER"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid role", decode(t, rec)["error"])
}

func TestLoginMissingField(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{}, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/login", `{"email":"a@b.c","role":"MEMBER"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password is required", decode(t, rec)["error"])
}

func TestLoginBadCredentials(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{err: svcErr(service.KindUnauthenticated, "Invalid credentials")}, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"x","role":"MEMBER"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec)["error"])
}

func TestRegisterCreated(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/register",
		`{"email":"ann@example.com","password":"pw","firstName":"Ann","lastName":"Lee","address":"1 Main St"}`)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Member registered successfully", body["message"])
	assert.Equal(t, "refresh", body["refreshToken"])
	require.NotNil(t, auth.gotInput.Address)
	assert.Equal(t, "1 Main St", *auth.gotInput.Address)
	assert.Nil(t, auth.gotInput.Phone)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{err: svcErr(service.KindConflict, "Email already registered")}, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/register",
		`{"email":"ann@example.com","password":"pw","firstName":"Ann","lastName":"Lee"}`)
	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decode(t, rec)["error"])
}

func TestRefreshInvalidToken(t *testing.T) {
	h := NewAuthHandler(&fakeAuth{err: svcErr(service.KindUnauthenticated, "Invalid token")}, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"nope"}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	auth := &fakeAuth{}
	h := NewAuthHandler(auth, fakeAccounts{})
	c, rec := newTestCtx(http.MethodPost, "/api/auth/logout", `{"refreshToken":"raw"}`)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "raw", auth.loggedOut)
}

func TestMe(t *testing.T) {
	accounts := fakeAccounts{5: model.Member{AccountBase: model.AccountBase{ID: 5, Email: "m@example.com", IsActive: true}}}
	h := NewAuthHandler(&fakeAuth{}, accounts)

	c, rec := newTestCtx(http.MethodGet, "/api/auth/me", "")
	asMember(c, 5)
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "m@example.com", body["email"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "Hash")

	c, rec = newTestCtx(http.MethodGet, "/api/auth/me", "")
	asMember(c, 6)
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newTestCtx(http.MethodGet, "/api/auth/me", "")
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
