package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/library-reservation/internal/model"
)

// TokenRepo persists/validates refresh tokens (single 'token_hash' column).
// Tokens belong to an (account_role, account_id) pair since every role
// has its own id space.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, role model.Role, accountID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (account_role, account_id, token_hash, expires_at) VALUES (?,?,?,?)",
		string(role), accountID, tokenHash, exp)
	return err
}

// ValidateRefresh returns the owning role and id if a non-revoked,
// non-expired token exists.  Otherwise sql.ErrNoRows.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (model.Role, uint64, error) {
	var (
		role      string
		accountID uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT account_role, account_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&role, &accountID, &expiresAt, &revokedAt)
	if err != nil {
		return "", 0, err
	}
	if revokedAt.Valid {
		return "", 0, sql.ErrNoRows
	}
	if time.Now().UTC().After(expiresAt) {
		return "", 0, sql.ErrNoRows
	}
	return model.Role(role), accountID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForAccount revokes all of an account's active tokens.  Used
// when an account is deactivated.
func (r *TokenRepo) RevokeAllForAccount(ctx context.Context, role model.Role, accountID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE account_role=? AND account_id=? AND revoked_at IS NULL",
		string(role), accountID)
	return err
}
