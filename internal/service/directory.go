package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/repository"
	"github.com/iliyamo/library-reservation/internal/utils"
)

// DirectoryService manages member, librarian and admin accounts.
// Accounts are never deleted, only deactivated.
type DirectoryService struct {
	accounts   *repository.AccountRepo
	tokens     *repository.TokenRepo
	bcryptCost int
}

func NewDirectoryService(accounts *repository.AccountRepo, tokens *repository.TokenRepo, bcryptCost int) *DirectoryService {
	return &DirectoryService{accounts: accounts, tokens: tokens, bcryptCost: bcryptCost}
}

// AccountInput holds the fields of a new account.  Address is only
// stored for members and Phone for members and librarians.
type AccountInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	Address   *string
}

// AccountPatch is a partial account update.  Nil fields are kept.
type AccountPatch = repository.AccountPatch

var roleNoun = map[model.Role]string{
	model.RoleMember:    "Member",
	model.RoleLibrarian: "Librarian",
	model.RoleAdmin:     "Admin",
}

func accountNotFound(role model.Role) string { return roleNoun[role] + " not found" }

// Create registers an account for role.  Emails are unique per role.
func (s *DirectoryService) Create(ctx context.Context, role model.Role, in AccountInput) (model.Account, error) {
	if _, ok := roleNoun[role]; !ok {
		return nil, newErr(KindValidation, "Invalid role")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, newErr(KindValidation, "Email, password, first name and last name are required")
	}
	if _, err := s.accounts.GetByEmail(ctx, role, email); err == nil {
		return nil, newErr(KindConflict, "Email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return nil, newErr(KindValidation, "Password must be at most %d bytes", utils.MaxPasswordBytes)
	}
	if err != nil {
		return nil, err
	}
	a, err := s.accounts.Create(ctx, role, repository.AccountRecord{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		Address:      in.Address,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, newErr(KindConflict, "Email already registered")
	}
	if err != nil {
		return nil, err
	}
	slog.Info("account created", "role", role, "account_id", a.AccountID())
	return a, nil
}

// Get returns one account of role.
func (s *DirectoryService) Get(ctx context.Context, role model.Role, id uint64) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, role, id)
	if err != nil {
		return nil, notFound(err, accountNotFound(role))
	}
	return a, nil
}

// List returns the profiles of every account of role, newest first.
func (s *DirectoryService) List(ctx context.Context, role model.Role) ([]model.Profile, error) {
	accounts, err := s.accounts.List(ctx, role)
	if err != nil {
		return nil, err
	}
	out := make([]model.Profile, len(accounts))
	for i, a := range accounts {
		out[i] = a.Profile()
	}
	return out, nil
}

// Update applies p to an account.  Email uniqueness is re-checked only
// when the email changes.
func (s *DirectoryService) Update(ctx context.Context, role model.Role, id uint64, p AccountPatch) (model.Account, error) {
	a, err := s.Get(ctx, role, id)
	if err != nil {
		return nil, err
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if email == "" {
			return nil, newErr(KindValidation, "Email must not be empty")
		}
		if email == a.AccountEmail() {
			p.Email = nil
		} else {
			if _, err := s.accounts.GetByEmail(ctx, role, email); err == nil {
				return nil, newErr(KindConflict, "Email already registered")
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			p.Email = &email
		}
	}
	for _, f := range []*string{p.FirstName, p.LastName} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return nil, newErr(KindValidation, "Name fields must not be empty")
		}
	}
	if err := s.accounts.Update(ctx, role, id, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newErr(KindConflict, "Email already registered")
		}
		return nil, err
	}
	if p.IsActive != nil && !*p.IsActive {
		s.revokeSessions(ctx, role, id)
	}
	return s.Get(ctx, role, id)
}

// Deactivate clears the active flag of an account and revokes its
// refresh tokens.
func (s *DirectoryService) Deactivate(ctx context.Context, role model.Role, id uint64) error {
	if _, ok := roleNoun[role]; !ok {
		return newErr(KindValidation, "Invalid role")
	}
	if _, err := s.Get(ctx, role, id); err != nil {
		return err
	}
	if err := s.accounts.SetActive(ctx, role, id, false); err != nil {
		return err
	}
	s.revokeSessions(ctx, role, id)
	slog.Info("account deactivated", "role", role, "account_id", id)
	return nil
}

func (s *DirectoryService) revokeSessions(ctx context.Context, role model.Role, id uint64) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.RevokeAllForAccount(ctx, role, id); err != nil {
		slog.Warn("revoke refresh tokens failed", "role", role, "account_id", id, "err", err)
	}
}
