// Package utils provides helpers for token creation, verification and
// password hashing.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/library-reservation/internal/model"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and sent in the Authorization header
// when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived token used to obtain new access
// tokens.  Only a SHA-256 hash of Raw is ever stored.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// Claims is the identity carried by an access token.  The account id is
// only meaningful together with the role because each role has its own
// id space.
type Claims struct {
	AccountID uint64
	Email     string
	Role      model.Role
}

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT for an account.  The
// token carries sub (account id), email, role, exp and iat.
func NewAccessToken(secret string, c Claims, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(c.AccountID, 10),
		"email": c.Email,
		"role":  string(c.Role),
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and extracts its claims.
// Only HMAC-signed tokens are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var out Claims
	switch sub := mc["sub"].(type) {
	case float64:
		out.AccountID = uint64(sub)
	case string:
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return Claims{}, ErrInvalidToken
		}
		out.AccountID = id
	default:
		return Claims{}, ErrInvalidToken
	}
	roleStr, _ := mc["role"].(string)
	role, ok := model.ParseRole(roleStr)
	if !ok || out.AccountID == 0 {
		return Claims{}, ErrInvalidToken
	}
	out.Role = role
	out.Email, _ = mc["email"].(string)
	return out, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw)
// valid for ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a
// hex string.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
