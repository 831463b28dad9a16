package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of registered and custom claims a bearer token must
// carry per spec.md §3: user id, roles, scopes, expiry.
type Claims struct {
	jwt.RegisteredClaims
	Roles  []string `json:"roles"`
	Scopes []string `json:"scopes"`
}

// TokenVerifier validates a compact bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string, now time.Time) (Claims, error)
}

// HMACVerifier implements TokenVerifier for HS256-signed compact JWTs, the
// self-contained signed-token format spec.md §6 calls for.
type HMACVerifier struct {
	signingKey []byte
	issuer     string // when non-empty, rejects tokens with a different "iss"
}

// NewHMACVerifier constructs a verifier for a shared HMAC signing key.
// issuer may be empty to skip issuer validation.
func NewHMACVerifier(signingKey []byte, issuer string) *HMACVerifier {
	return &HMACVerifier{signingKey: signingKey, issuer: issuer}
}

// Verify checks the token's signature, expiry, and (if configured) issuer,
// returning its claims on success.
func (v *HMACVerifier) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return v.signingKey, nil
	}, parserOpts...)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SignHS256 produces a compact HS256 JWT for claims, used by tests and by
// any internal token-issuance tooling sharing this verifier's key.
func SignHS256(signingKey []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}
