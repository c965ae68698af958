package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyHostToken_AcceptsValidToken(t *testing.T) {
	v := NewVerifier("test-secret")
	raw := signToken(t, "test-secret", Claims{
		UserID: "host-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	userID, err := v.VerifyHostToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "host-42", userID)
}

func TestVerifyHostToken_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	raw := signToken(t, "test-secret", Claims{
		UserID: "host-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := v.VerifyHostToken(raw)
	assert.Error(t, err)
}

func TestVerifyHostToken_RejectsWrongSecret(t *testing.T) {
	v := NewVerifier("test-secret")
	raw := signToken(t, "other-secret", Claims{UserID: "host-42"})

	_, err := v.VerifyHostToken(raw)
	assert.Error(t, err)
}

func TestVerifyHostToken_RejectsMissingSubject(t *testing.T) {
	v := NewVerifier("test-secret")
	raw := signToken(t, "test-secret", Claims{})

	_, err := v.VerifyHostToken(raw)
	assert.Error(t, err)
}
