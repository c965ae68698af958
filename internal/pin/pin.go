// Package pin implements the 6-digit room PIN value object and its
// collision-avoiding allocator (spec.md §4.1).
package pin

import (
	"crypto/rand"
	"math/big"

	"github.com/kwizo/quizroom/internal/roomerr"
)

// PIN is a 6 ASCII digit value object; equality is by value.
type PIN string

// digitMax is the exclusive upper bound for a single base-10 digit draw.
var digitMax = big.NewInt(10)

// Generate draws six uniform-random digits.
func Generate() (PIN, error) {
	digits := make([]byte, 6)
	for i := range digits {
		n, err := rand.Int(rand.Reader, digitMax)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0') + byte(n.Int64())
	}
	return PIN(digits), nil
}

// IsValid reports whether s is a syntactically valid PIN: exactly six
// ASCII digits. It does not check uniqueness against any store.
func IsValid(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Existence checks whether a PIN is already allocated to a live room.
type Existence interface {
	Exists(p PIN) bool
}

// Allocate draws PINs until it finds one not present in repo, retrying
// up to maxAttempts times. On exhaustion it fails with CapacityExceeded
// (spec.md §4.1's defensible reconstruction: at 50 draws the failure
// probability stays under 10^-3 even with close to a million live rooms).
func Allocate(repo Existence, maxAttempts int) (PIN, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		p, err := Generate()
		if err != nil {
			lastErr = err
			continue
		}
		if !repo.Exists(p) {
			return p, nil
		}
	}
	if lastErr != nil {
		return "", roomerr.Wrap(roomerr.CapacityExceeded, "could not allocate a room PIN", lastErr)
	}
	return "", roomerr.New(roomerr.CapacityExceeded, "could not allocate a room PIN")
}
