package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/library-reservation/internal/model"
)

// accountTable describes where a role's accounts live and which
// optional columns that table carries.
type accountTable struct {
	name       string
	hasPhone   bool
	hasAddress bool
}

var accountTables = map[model.Role]accountTable{
	model.RoleMember:    {name: "members", hasPhone: true, hasAddress: true},
	model.RoleLibrarian: {name: "librarians", hasPhone: true},
	model.RoleAdmin:     {name: "admins"},
}

func tableFor(role model.Role) (accountTable, error) {
	t, ok := accountTables[role]
	if !ok {
		return accountTable{}, fmt.Errorf("unknown role %q", role)
	}
	return t, nil
}

// columns returns the select list for t.  Columns a table lacks are
// selected as NULL so every role scans into the same record.
func (t accountTable) columns() string {
	phone, address := "NULL", "NULL"
	if t.hasPhone {
		phone = "phone"
	}
	if t.hasAddress {
		address = "address"
	}
	return "id, email, password_hash, first_name, last_name, " + phone + ", " + address + ", is_active, created_at, updated_at"
}

// AccountRecord mirrors a row of any of the account tables.
type AccountRecord struct {
	ID           uint64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Address      *string
	IsActive     bool
}

// AccountPatch carries the fields of a partial update.  Nil fields are
// left untouched.
type AccountPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
	IsActive  *bool
}

// AccountRepo stores members, librarians and admins.  Every method is
// scoped by role, which selects the table.
type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

func scanAccount(role model.Role, row interface{ Scan(...any) error }) (model.Account, error) {
	var (
		base    model.AccountBase
		phone   sql.NullString
		address sql.NullString
	)
	if err := row.Scan(&base.ID, &base.Email, &base.Hash, &base.FirstName, &base.LastName,
		&phone, &address, &base.IsActive, &base.CreatedAt, &base.UpdatedAt); err != nil {
		return nil, err
	}
	switch role {
	case model.RoleMember:
		return model.Member{AccountBase: base, Phone: nullString(phone), Address: nullString(address)}, nil
	case model.RoleLibrarian:
		return model.Librarian{AccountBase: base, Phone: nullString(phone)}, nil
	default:
		return model.Admin{AccountBase: base}, nil
	}
}

// Create inserts an account and returns it as stored.  The email is
// normalised to lower case.  A taken email yields ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, role model.Role, rec AccountRecord) (model.Account, error) {
	t, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	cols := []string{"email", "password_hash", "first_name", "last_name", "is_active"}
	args := []any{normalizeEmail(rec.Email), rec.PasswordHash, rec.FirstName, rec.LastName, true}
	if t.hasPhone {
		cols = append(cols, "phone")
		args = append(args, rec.Phone)
	}
	if t.hasAddress {
		cols = append(cols, "address")
		args = append(args, rec.Address)
	}
	q := "INSERT INTO " + t.name + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, role, uint64(id))
}

// GetByID fetches an account by id.  sql.ErrNoRows when absent.
func (r *AccountRepo) GetByID(ctx context.Context, role model.Role, id uint64) (model.Account, error) {
	t, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+t.columns()+" FROM "+t.name+" WHERE id = ? LIMIT 1", id)
	return scanAccount(role, row)
}

// GetByEmail fetches an account by normalised email.  sql.ErrNoRows when absent.
func (r *AccountRepo) GetByEmail(ctx context.Context, role model.Role, email string) (model.Account, error) {
	t, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+t.columns()+" FROM "+t.name+" WHERE email = ? LIMIT 1", normalizeEmail(email))
	return scanAccount(role, row)
}

// List returns every account of a role, newest first.
func (r *AccountRepo) List(ctx context.Context, role model.Role) ([]model.Account, error) {
	t, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+t.columns()+" FROM "+t.name+" ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Account, 0)
	for rows.Next() {
		a, err := scanAccount(role, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of p.  Fields a role's table does
// not have are ignored.  A taken email yields ErrDuplicate.
func (r *AccountRepo) Update(ctx context.Context, role model.Role, id uint64, p AccountPatch) error {
	t, err := tableFor(role)
	if err != nil {
		return err
	}
	var (
		sets []string
		args []any
	)
	if p.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, normalizeEmail(*p.Email))
	}
	if p.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *p.FirstName)
	}
	if p.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *p.LastName)
	}
	if p.Phone != nil && t.hasPhone {
		sets = append(sets, "phone = ?")
		args = append(args, *p.Phone)
	}
	if p.Address != nil && t.hasAddress {
		sets = append(sets, "address = ?")
		args = append(args, *p.Address)
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *p.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err = r.db.ExecContext(ctx, "UPDATE "+t.name+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return translate(err)
}

// SetActive flips the is_active flag of an account.
func (r *AccountRepo) SetActive(ctx context.Context, role model.Role, id uint64, active bool) error {
	return r.Update(ctx, role, id, AccountPatch{IsActive: &active})
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullID(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	id := uint64(n.Int64)
	return &id
}
