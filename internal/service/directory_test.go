package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/library-reservation/internal/model"
	"github.com/iliyamo/library-reservation/internal/repository"
	"github.com/iliyamo/library-reservation/internal/utils"
)

var accountCols = []string{"id", "email", "password_hash", "first_name", "last_name", "phone", "address", "is_active", "created_at", "updated_at"}

func newDirectoryMock(t *testing.T) (*DirectoryService, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDirectoryService(repository.NewAccountRepo(db), repository.NewTokenRepo(db), bcrypt.MinCost), db, mock
}

func TestCreateMemberHashesPassword(t *testing.T) {
	svc, _, mock := newDirectoryMock(t)
	now := time.Now()
	phone := "555"

	mock.ExpectQuery(`FROM members WHERE email = \?`).WithArgs("ann@example.com").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO members \(email, password_hash, first_name, last_name, is_active, phone, address\)`).
		WithArgs("ann@example.com", sqlmock.AnyArg(), "Ann", "Lee", true, "555", nil).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery(`FROM members WHERE id = \?`).WithArgs(4).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(4, "ann@example.com", "hash", "Ann", "Lee", "555", nil, true, now, now))

	a, err := svc.Create(context.Background(), model.RoleMember, AccountInput{
		Email: " Ann@Example.com ", Password: "pw", FirstName: "Ann", LastName: "Lee", Phone: &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, a.AccountRole())
	p := a.Profile()
	assert.Equal(t, "ann@example.com", p.Email)
	require.NotNil(t, p.Phone)
	assert.Nil(t, p.Address)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	svc, _, mock := newDirectoryMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM librarians WHERE email = \?`).WithArgs("lib@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(1, "lib@example.com", "h", "L", "B", nil, nil, true, now, now))
	_, err := svc.Create(context.Background(), model.RoleLibrarian, AccountInput{
		Email: "lib@example.com", Password: "pw", FirstName: "L", LastName: "B",
	})
	assert.True(t, IsKind(err, KindConflict))

	// a race lost at the unique index is reported the same way
	mock.ExpectQuery(`FROM admins WHERE email = \?`).WithArgs("adm@example.com").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO admins \(email, password_hash, first_name, last_name, is_active\)`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	_, err = svc.Create(context.Background(), model.RoleAdmin, AccountInput{
		Email: "adm@example.com", Password: "pw", FirstName: "A", LastName: "D",
	})
	assert.True(t, IsKind(err, KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _, mock := newDirectoryMock(t)
	_, err := svc.Create(context.Background(), model.RoleMember, AccountInput{Email: "x@example.com"})
	assert.True(t, IsKind(err, KindValidation))
	_, err = svc.Create(context.Background(), model.Role("GUEST"), AccountInput{})
	assert.True(t, IsKind(err, KindValidation))

	mock.ExpectQuery(`FROM members WHERE email = \?`).WithArgs("long@example.com").WillReturnError(sql.ErrNoRows)
	_, err = svc.Create(context.Background(), model.RoleMember, AccountInput{
		Email: "long@example.com", Password: strings.Repeat("p", utils.MaxPasswordBytes+1), FirstName: "L", LastName: "P",
	})
	assert.True(t, IsKind(err, KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSameEmailSkipsUniquenessCheck(t *testing.T) {
	svc, _, mock := newDirectoryMock(t)
	now := time.Now()
	email := "ANN@example.com"
	first := "Annie"

	mock.ExpectQuery(`FROM members WHERE id = \?`).WithArgs(4).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(4, "ann@example.com", "h", "Ann", "Lee", nil, nil, true, now, now))
	mock.ExpectExec(`UPDATE members SET first_name = \? WHERE id = \?`).WithArgs("Annie", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM members WHERE id = \?`).WithArgs(4).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(4, "ann@example.com", "h", "Annie", "Lee", nil, nil, true, now, now))

	a, err := svc.Update(context.Background(), model.RoleMember, 4, AccountPatch{Email: &email, FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Annie", a.Profile().FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateRevokesSessions(t *testing.T) {
	svc, _, mock := newDirectoryMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM librarians WHERE id = \?`).WithArgs(2).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(2, "l@example.com", "h", "L", "B", nil, nil, true, now, now))
	mock.ExpectExec(`UPDATE librarians SET is_active = \? WHERE id = \?`).WithArgs(false, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(\) WHERE account_role=\? AND account_id=\?`).
		WithArgs("LIBRARIAN", 2).WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, svc.Deactivate(context.Background(), model.RoleLibrarian, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateUnknownAccount(t *testing.T) {
	svc, _, mock := newDirectoryMock(t)
	mock.ExpectQuery(`FROM admins WHERE id = \?`).WithArgs(9).WillReturnError(sql.ErrNoRows)

	err := svc.Deactivate(context.Background(), model.RoleAdmin, 9)
	assert.True(t, IsKind(err, KindNotFound))
	assert.EqualError(t, err, "Admin not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	svc, db, mock := newDirectoryMock(t)
	auth := NewAuthService(AuthConfig{JWTSecret: "s", AccessTTLMin: 15, RefreshTTLDays: 7},
		repository.NewAccountRepo(db), repository.NewTokenRepo(db), svc)
	now := time.Now()
	hash, err := utils.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	// unknown email
	mock.ExpectQuery(`FROM members WHERE email = \?`).WithArgs("x@example.com").WillReturnError(sql.ErrNoRows)
	_, err = auth.Login(ctx, "x@example.com", "pw", model.RoleMember)
	assert.True(t, IsKind(err, KindUnauthenticated))

	// wrong password
	mock.ExpectQuery(`FROM members WHERE email = \?`).WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(4, "ann@example.com", hash, "Ann", "Lee", nil, nil, true, now, now))
	_, err = auth.Login(ctx, "ann@example.com", "nope", model.RoleMember)
	assert.EqualError(t, err, "Invalid credentials")

	// inactive
	mock.ExpectQuery(`FROM members WHERE email = \?`).WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(4, "ann@example.com", hash, "Ann", "Lee", nil, nil, false, now, now))
	_, err = auth.Login(ctx, "ann@example.com", "pw", model.RoleMember)
	assert.EqualError(t, err, "Account is inactive")

	// success
	mock.ExpectQuery(`FROM members WHERE email = \?`).WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(4, "ann@example.com", hash, "Ann", "Lee", nil, nil, true, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WithArgs("MEMBER", 4, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	sess, err := auth.Login(ctx, "Ann@Example.com", "pw", model.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), sess.User.ID)
	assert.Equal(t, model.RoleMember, sess.User.Role)

	claims, err := utils.ParseAccessToken("s", sess.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), claims.AccountID)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, db, mock := newDirectoryMock(t)
	auth := NewAuthService(AuthConfig{JWTSecret: "s", AccessTTLMin: 15, RefreshTTLDays: 7},
		repository.NewAccountRepo(db), repository.NewTokenRepo(db), svc)
	now := time.Now()
	hash := utils.HashRefreshRaw("raw")

	mock.ExpectQuery(`SELECT account_role, account_id, expires_at, revoked_at FROM refresh_tokens`).WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"account_role", "account_id", "expires_at", "revoked_at"}).
			AddRow("ADMIN", 1, now.Add(time.Hour).UTC(), nil))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(\) WHERE token_hash=\?`).WithArgs(hash).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM admins WHERE id = \?`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(1, "a@example.com", "h", "A", "D", nil, nil, true, now, now))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WithArgs("ADMIN", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	sess, err := auth.Refresh(context.Background(), "raw")
	require.NoError(t, err)
	assert.NotEqual(t, "raw", sess.RefreshToken)
	assert.Equal(t, model.RoleAdmin, sess.User.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
