package model

import (
	"strings"
	"time"
)

// Role names one of the three disjoint account classes.  Each role has
// its own table and its own id space, so an id is only meaningful
// together with the role it was issued for.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleLibrarian Role = "LIBRARIAN"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleMember, RoleLibrarian, RoleAdmin:
		return r, true
	}
	return "", false
}

// Account is implemented by every account variant.  Handlers and the
// auth service only ever work through this interface; the concrete
// variant matters to the directory service, which knows which optional
// columns each role carries.
type Account interface {
	AccountID() uint64
	AccountRole() Role
	AccountEmail() string
	PasswordHash() string
	Active() bool
	Profile() Profile
}

// Profile is the public representation of an account.  It never
// carries the password hash.
type Profile struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccountBase holds the columns shared by members, librarians and admins.
//
// Fields:
//
//	ID           – primary key within the role's table.
//	Email        – unique per role, stored lower-cased.
//	Hash         – bcrypt hash of the password.
//	FirstName    – given name.
//	LastName     – family name.
//	IsActive     – false once the account has been deactivated.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type AccountBase struct {
	ID        uint64
	Email     string
	Hash      string
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a AccountBase) AccountID() uint64    { return a.ID }
func (a AccountBase) AccountEmail() string { return a.Email }
func (a AccountBase) PasswordHash() string { return a.Hash }
func (a AccountBase) Active() bool         { return a.IsActive }

func (a AccountBase) profile(role Role) Profile {
	return Profile{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Role:      role,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Member is a library patron.  Members register themselves and are the
// only accounts that borrow and reserve.
type Member struct {
	AccountBase
	Phone   *string // members.phone (nullable)
	Address *string // members.address (nullable)
}

func (m Member) AccountRole() Role { return RoleMember }

func (m Member) Profile() Profile {
	p := m.profile(RoleMember)
	p.Phone = m.Phone
	p.Address = m.Address
	return p
}

// Librarian approves and closes lending requests.
type Librarian struct {
	AccountBase
	Phone *string // librarians.phone (nullable)
}

func (l Librarian) AccountRole() Role { return RoleLibrarian }

func (l Librarian) Profile() Profile {
	p := l.profile(RoleLibrarian)
	p.Phone = l.Phone
	return p
}

// Admin manages the catalog and the account directory.
type Admin struct {
	AccountBase
}

func (a Admin) AccountRole() Role { return RoleAdmin }

func (a Admin) Profile() Profile { return a.profile(RoleAdmin) }

// RefreshToken models an entry in the `refresh_tokens` table.  Tokens
// are scoped to an (account_role, account_id) pair because each role
// has its own id space.  Only the SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID          uint64     // refresh_tokens.id
	AccountRole Role       // refresh_tokens.account_role
	AccountID   uint64     // refresh_tokens.account_id
	TokenHash   string     // refresh_tokens.token_hash
	ExpiresAt   time.Time  // refresh_tokens.expires_at
	RevokedAt   *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt   time.Time  // refresh_tokens.created_at
}
