// Package token produces opaque, high-entropy reconnection tokens for
// hosts, players and spectators (spec.md §4.2). Tokens never embed
// identity; they are looked up through a repository index.
package token

import (
	"crypto/rand"
	"encoding/base64"
)

// byteLength gives >=128 bits of entropy once base64-encoded.
const byteLength = 24

// Token is an opaque, URL-safe, header-safe string.
type Token string

// Generate returns a fresh, unguessable token.
func Generate() (Token, error) {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return Token(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// MustGenerate panics on entropy-source failure. Only used where the
// caller has no sane error path (e.g. inside a locked state-machine
// transition that cannot itself fail); crypto/rand on a live OS does
// not fail in practice.
func MustGenerate() Token {
	t, err := Generate()
	if err != nil {
		panic(err)
	}
	return t
}
