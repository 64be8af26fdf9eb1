// Package auth implements the admin API's two authentication schemes
// (spec.md §6): an HS256 JWT bearer token carrying {id, flag:"auth"}, and
// an X-API-KEY header resolved by prefix then verified in constant time.
// Grounded on the teacher's extractBearerToken/tokenMatch idiom
// (internal/http/auth.go in the teacher tree) and golang-jwt/jwt/v5, the
// JWT library named in SPEC_FULL.md §6 via the dist-job-scheduler
// reference manifest.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// authFlag is the claim value distinguishing a reqsched bearer token from
// any other HS256 JWT that happens to share the secret (spec.md §6 "flag
// mismatch -> 401").
const authFlag = "auth"

// claims is the JWT payload shape spec.md §6 specifies: {id, flag:"auth"}.
type claims struct {
	ID   string `json:"id"`
	Flag string `json:"flag"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies the bearer tokens returned by
// POST /api/v1/users/token.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a TokenIssuer around secret. ttl is the token
// lifetime; 0 selects a 30-day default, matching the teacher's own
// long-lived session token convention.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a bearer token for userID.
func (t *TokenIssuer) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		ID:   userID.String(),
		Flag: authFlag,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	return tok.SignedString(t.secret)
}

// Verify parses and validates tokenStr, returning the carried user id.
// Any structural problem, expiry, or flag mismatch is reported as a
// single opaque error — spec.md §6 treats all of these as 401, not as
// distinct error kinds the caller could leak to the client.
func (t *TokenIssuer) Verify(tokenStr string) (uuid.UUID, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(tokenStr, &c, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.New("invalid or expired token")
	}
	if c.Flag != authFlag {
		return uuid.Nil, errors.New("token flag mismatch")
	}
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, errors.New("token carries malformed user id")
	}
	return id, nil
}

// ExtractBearerToken pulls the JWT out of an Authorization: Bearer header,
// the way the teacher's extractBearerToken does for its own bearer scheme.
func ExtractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
