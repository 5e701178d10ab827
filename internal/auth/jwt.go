// Package auth verifies the portal's HS256 access tokens at the transport
// boundary. The messaging core never sees tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken    = errors.New("missing access token")
	ErrInvalidToken    = errors.New("invalid access token")
	ErrInvalidIdentity = errors.New("token carries no identity")
)

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret    []byte
	clockSkew time.Duration
}

func NewVerifier(secret string, clockSkew time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), clockSkew: clockSkew}
}

// Verify validates tokenStr and returns the identity from its "id" claim,
// falling back to "sub".
func (v *Verifier) Verify(tokenStr string) (string, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.clockSkew),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	return identityFrom(claims)
}

func identityFrom(claims jwt.MapClaims) (string, error) {
	switch id := claims["id"].(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", ErrInvalidIdentity
}

// Sign issues a token for identity. Used by tools and tests; the portal's
// auth service is the real issuer.
func (v *Verifier) Sign(identity string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  identity,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads the bearer token from the Authorization header or
// the access_token query parameter, which browsers must use for websockets.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
