package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/repository"
	"github.com/iliyamo/library-reservation/internal/utils"
)

// AuthConfig holds the token settings of AuthService.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
}

// AuthService authenticates accounts and issues token pairs.
type AuthService struct {
	cfg       AuthConfig
	accounts  *repository.AccountRepo
	tokens    *repository.TokenRepo
	directory *DirectoryService
}

func NewAuthService(cfg AuthConfig, accounts *repository.AccountRepo, tokens *repository.TokenRepo, directory *DirectoryService) *AuthService {
	return &AuthService{cfg: cfg, accounts: accounts, tokens: tokens, directory: directory}
}

// Session is the result of a successful login, registration or refresh.
type Session struct {
	User             model.Profile `json:"user"`
	Token            string        `json:"token"`
	ExpiresAt        time.Time     `json:"expiresAt"`
	RefreshToken     string        `json:"refreshToken"`
	RefreshExpiresAt time.Time     `json:"refreshExpiresAt"`
}

var errBadCredentials = newErr(KindUnauthenticated, "Invalid credentials")

// Login checks email and password against the account table of role.
func (s *AuthService) Login(ctx context.Context, email, password string, role model.Role) (*Session, error) {
	if _, ok := roleNoun[role]; !ok {
		return nil, newErr(KindValidation, "Invalid role")
	}
	a, err := s.accounts.GetByEmail(ctx, role, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(a.PasswordHash(), password) {
		return nil, errBadCredentials
	}
	if !a.Active() {
		return nil, newErr(KindUnauthenticated, "Account is inactive")
	}
	return s.issue(ctx, a)
}

// Register creates a member account and signs it in.
func (s *AuthService) Register(ctx context.Context, in AccountInput) (*Session, error) {
	a, err := s.directory.Create(ctx, model.RoleMember, in)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, a)
}

// Refresh rotates a refresh token: the presented one is revoked and a
// new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	role, id, err := s.tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newErr(KindUnauthenticated, "Invalid token")
	}
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, err
	}
	a, err := s.accounts.GetByID(ctx, role, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newErr(KindUnauthenticated, "Invalid token")
	}
	if err != nil {
		return nil, err
	}
	if !a.Active() {
		return nil, newErr(KindUnauthenticated, "Account is inactive")
	}
	return s.issue(ctx, a)
}

// Logout revokes one refresh token.  Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
}

func (s *AuthService) issue(ctx context.Context, a model.Account) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, utils.Claims{
		AccountID: a.AccountID(),
		Email:     a.AccountEmail(),
		Role:      a.AccountRole(),
	}, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.StoreRefresh(ctx, a.AccountRole(), a.AccountID(), utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &Session{
		User:             a.Profile(),
		Token:            access.Token,
		ExpiresAt:        access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}
