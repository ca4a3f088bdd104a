package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-reservation/internal/middleware"
	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/service"
)

// Authenticator issues and revokes sessions.
type Authenticator interface {
	Login(ctx context.Context, email, password string, role model.Role) (*service.Session, error)
	Register(ctx context.Context, in service.AccountInput) (*service.Session, error)
	Refresh(ctx context.Context, raw string) (*service.Session, error)
	Logout(ctx context.Context, raw string) error
}

// AccountReader loads a single account.
type AccountReader interface {
	Get(ctx context.Context, role model.Role, id uint64) (model.Account, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     Authenticator
	Accounts AccountReader
}

func NewAuthHandler(auth Authenticator, accounts AccountReader) *AuthHandler {
	return &AuthHandler{Auth: auth, Accounts: accounts}
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type registerReq struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,max=72"`
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type registerResp struct {
	Message string `json:"message"`
	*service.Session
}

// Login: POST /api/auth/login {email,password,role}.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid role"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Auth.Login(ctx, req.Email, req.Password, role)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Register: POST /api/auth/register creates a member and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Auth.Register(ctx, service.AccountInput{
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
	return c.JSON(http.StatusCreated, registerResp{Message: "Member registered successfully", Session: s})
}

// Refresh: POST /api/auth/refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Logout: POST /api/auth/logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: GET /api/auth/me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, role, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication required"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Accounts.Get(ctx, role, id)
	if err != nil {
		return failRead(c, err)
	}
	return c.JSON(http.StatusOK, a.Profile())
}
