package token

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	SetSecret("unit-test-secret")

	tok, err := GenerateJWT("u1", string(RoleStudent), "test")
	require.NoError(t, err)

	claims, err := ParseJWT("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "student", claims.Role)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	SetSecret("secret-a")
	tok, err := GenerateJWT("u1", string(RoleAdmin), "test")
	require.NoError(t, err)

	SetSecret("secret-b")
	_, err = ParseJWT(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWT_RejectsNoneAlg(t *testing.T) {
	SetSecret("unit-test-secret")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseJWT(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserIDUnverified(t *testing.T) {
	SetSecret("whatever")
	tok, err := GenerateJWT("lecturer-7", string(RoleLecturer), "test")
	require.NoError(t, err)

	id, err := UserIDUnverified(tok)
	require.NoError(t, err)
	assert.Equal(t, "lecturer-7", id)

	_, err = UserIDUnverified("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
