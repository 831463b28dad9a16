package auth

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims(subject string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
}

func TestGateAdmitsValidBearerWithinQuota(t *testing.T) {
	key := []byte("test-key")
	token, err := SignHS256(key, testClaims("u1"))
	require.NoError(t, err)

	g := NewGate(NewResolver(NewHMACVerifier(key, ""), nil), NewLimiter(60, 5))
	id, decision, err := g.Admit(context.Background(), Credentials{BearerToken: token})
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
	assert.True(t, decision.Allowed)
}

func TestGateRejectsWhenRateLimited(t *testing.T) {
	key := []byte("test-key")
	token, err := SignHS256(key, testClaims("u1"))
	require.NoError(t, err)

	g := NewGate(NewResolver(NewHMACVerifier(key, ""), nil), NewLimiter(60, 1))
	_, _, err = g.Admit(context.Background(), Credentials{BearerToken: token})
	require.NoError(t, err)
	_, _, err = g.Admit(context.Background(), Credentials{BearerToken: token})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGateRejectsInvalidCredential(t *testing.T) {
	g := NewGate(NewResolver(NewHMACVerifier([]byte("k"), ""), nil), NewLimiter(60, 5))
	_, _, err := g.Admit(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestCredentialsFromRequestPrefersHeaderAPIKeyOverQuery(t *testing.T) {
	u, _ := url.Parse("http://example.test/search?api_key=from-query")
	req := &http.Request{Header: http.Header{"X-Api-Key": []string{"from-header"}}, URL: u}
	creds := CredentialsFromRequest(req)
	assert.Equal(t, "from-header", creds.APIKey)
}

func TestCredentialsFromRequestFallsBackToQueryParam(t *testing.T) {
	u, _ := url.Parse("http://example.test/search?api_key=from-query")
	req := &http.Request{Header: http.Header{}, URL: u}
	creds := CredentialsFromRequest(req)
	assert.Equal(t, "from-query", creds.APIKey)
}

func TestCredentialsFromRequestParsesBearer(t *testing.T) {
	req := &http.Request{Header: http.Header{"Authorization": []string{"Bearer abc.def.ghi"}}, URL: &url.URL{}}
	creds := CredentialsFromRequest(req)
	assert.Equal(t, "abc.def.ghi", creds.BearerToken)
}
