package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsWithExpiry(subject string, roles []string, expiresAt time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Roles: roles,
	}
}

func TestSignAndVerifyHS256RoundTrip(t *testing.T) {
	key := []byte("test-signing-key")
	claims := claimsWithExpiry("user-1", []string{"ops"}, time.Now().Add(time.Hour))
	token, err := SignHS256(key, claims)
	require.NoError(t, err)

	v := NewHMACVerifier(key, "")
	got, err := v.Verify(token, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, []string{"ops"}, got.Roles)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	key := []byte("test-signing-key")
	claims := claimsWithExpiry("user-1", nil, time.Now().Add(-time.Minute))
	token, err := SignHS256(key, claims)
	require.NoError(t, err)

	v := NewHMACVerifier(key, "")
	_, err = v.Verify(token, time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSigningKey(t *testing.T) {
	claims := claimsWithExpiry("user-1", nil, time.Now().Add(time.Hour))
	token, err := SignHS256([]byte("correct-key"), claims)
	require.NoError(t, err)

	v := NewHMACVerifier([]byte("wrong-key"), "")
	_, err = v.Verify(token, time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMismatchedIssuer(t *testing.T) {
	key := []byte("test-signing-key")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "other",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := SignHS256(key, claims)
	require.NoError(t, err)

	v := NewHMACVerifier(key, "capsearch")
	_, err = v.Verify(token, time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	v := NewHMACVerifier([]byte("k"), "")
	_, err := v.Verify("not-a-jwt", time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}
