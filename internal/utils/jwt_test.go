package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/library-reservation/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	in := Claims{AccountID: 42, Email: "m@example.com", Role: model.RoleLibrarian}
	tok, err := NewAccessToken("secret", in, 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), tok.Exp, 5*time.Second)

	got, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestParseAccessTokenRejects(t *testing.T) {
	tok, err := NewAccessToken("secret", Claims{AccountID: 1, Role: model.RoleMember}, 15)
	require.NoError(t, err)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("secret", Claims{AccountID: 1, Role: model.RoleMember}, -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "JANITOR", "exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := badRole.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken("secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenHashing(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))

	hash, err = HashPassword("s3cret", 0)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
