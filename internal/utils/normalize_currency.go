package utils

import (
	"strings"
)

// NormalizeCurrency canonicalizes a currency code to upper-case letters.
// Returns "" when the input is not a plausible ISO 4217 code.
func NormalizeCurrency(raw string) string {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if len(normalized) != 3 {
		return ""
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return normalized
}
