package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/service"
)

func newTestCtx(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asMember(c echo.Context, id uint64) {
	c.Set("user_id", id)
	c.Set("role", string(model.RoleMember))
}

func withParam(c echo.Context, name, value string) {
	c.SetParamNames(name)
	c.SetParamValues(value)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func svcErr(k service.Kind, msg string) error { return &service.Error{Kind: k, Msg: msg} }

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{svcErr(service.KindValidation, "x"), http.StatusBadRequest},
		{svcErr(service.KindConflict, "x"), http.StatusBadRequest},
		{svcErr(service.KindInvalidState, "x"), http.StatusBadRequest},
		{svcErr(service.KindNotFound, "x"), http.StatusTeapot},
		{svcErr(service.KindForbidden, "x"), http.StatusForbidden},
		{svcErr(service.KindUnauthenticated, "x"), http.StatusUnauthorized},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err, http.StatusTeapot), tc.err.Error())
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/", "")
	require.NoError(t, fail(c, errors.New("dial tcp 10.0.0.1:3306: refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
}

func TestValidationMessageUsesJSONNames(t *testing.T) {
	c, rec := newTestCtx(http.MethodPost, "/", `{"email":"not-an-email","password":"p","firstName":"A","lastName":"B"}`)
	var req registerReq
	ok, err := bind(c, &req)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email must be a valid email", decode(t, rec)["error"])
}

func TestBindRejectsMalformedJSON(t *testing.T) {
	c, rec := newTestCtx(http.MethodPost, "/", `{"bookCopyId":`)
	var req borrowReq
	ok, err := bind(c, &req)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "Invalid request body", decode(t, rec)["error"])
}

func TestPathID(t *testing.T) {
	c, _ := newTestCtx(http.MethodGet, "/", "")
	withParam(c, "bookId", "0")
	_, ok := pathID(c, "bookId")
	assert.False(t, ok)
	withParam(c, "bookId", "abc")
	_, ok = pathID(c, "bookId")
	assert.False(t, ok)
	withParam(c, "bookId", "42")
	id, ok := pathID(c, "bookId")
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
}

func TestHealth(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/healthz", "")
	require.NoError(t, Health(c))
	assert.Equal(t, "ok", rec.Body.String())
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	c, rec := newTestCtx(http.MethodGet, "/readyz", "")
	require.NoError(t, Ready(pingFunc(func(context.Context) error { return nil }))(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestCtx(http.MethodGet, "/readyz", "")
	require.NoError(t, Ready(pingFunc(func(context.Context) error { return errors.New("down") }))(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
