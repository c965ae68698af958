// Package auth verifies the host JWT the socket dispatcher requires
// for host-only verbs (spec.md §6.1). Issuance and the rest of the
// authentication surface (login, refresh) are external collaborators
// out of scope for this module (spec.md §1); this package only
// verifies a token presented on an inbound event.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kwizo/quizroom/internal/roomerr"
)

// Claims is the minimal host-identity claim set the core relies on.
type Claims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

// Verifier validates host JWTs signed with a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier using secret as the HMAC signing key.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyHostToken parses and validates raw, returning the embedded
// user id. Any parse/signature/expiry failure surfaces as Forbidden
// (spec.md §7: auth failures never leak internals).
func (v *Verifier) VerifyHostToken(raw string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", roomerr.New(roomerr.Forbidden, "invalid or expired host token")
	}
	if claims.UserID == "" {
		return "", roomerr.New(roomerr.Forbidden, "host token missing subject")
	}
	return claims.UserID, nil
}
