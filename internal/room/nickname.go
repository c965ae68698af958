package room

import (
	"regexp"
	"strings"

	"github.com/kwizo/quizroom/config"
	"github.com/kwizo/quizroom/internal/roomerr"
)

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateNickname checks length and character-set rules (spec.md §3)
// on the nickname with surrounding whitespace trimmed.
func ValidateNickname(raw string) error {
	raw = strings.TrimSpace(raw)
	n := len(raw)
	if n < config.MinNicknameLength || n > config.MaxNicknameLength {
		return roomerr.New(roomerr.Validation, "nickname must be 2-15 characters")
	}
	if !nicknamePattern.MatchString(raw) {
		return roomerr.New(roomerr.Validation, "nickname may only contain letters, digits, underscore and hyphen")
	}
	return nil
}

// NormalizeNickname lower-cases and trims a nickname for uniqueness
// comparisons (spec.md §3).
func NormalizeNickname(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
