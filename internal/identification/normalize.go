package identification

import (
	"strings"
	"unicode"
)

// NormalizeName reduces a plant name to its comparison form: lowercase with
// symbol words expanded and everything but letters and digits removed.
// "Rosa × damascena" and "rosa damascena" normalize identically, which is the
// property the merge identity keys depend on.
func NormalizeName(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	normalized := strings.ToLower(input)
	normalized = strings.ReplaceAll(normalized, "&", "and")
	normalized = strings.ReplaceAll(normalized, "+", "and")
	// Hybrid markers are typography, not identity.
	normalized = strings.ReplaceAll(normalized, "×", "")

	var builder strings.Builder
	for _, r := range normalized {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
