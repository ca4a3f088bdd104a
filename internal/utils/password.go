package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// HashPassword returns a bcrypt hash of plain.  Costs outside bcrypt's
// accepted range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.  A malformed
// hash never matches.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
