package utils

import (
	"fmt"
	"strings"
	"unicode"
)

// South African dialling prefix. Local numbers ("0821234567") are rewritten
// to international form; numbers already carrying a + prefix pass through.
const zaCountryPrefix = "+27"

// NormalizePhone converts a South African phone number to international
// format: "0821234567" becomes "+27821234567". Spaces, dashes and
// parentheses are stripped first.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '+' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" {
		return "", fmt.Errorf("empty phone number")
	}

	if strings.HasPrefix(cleaned, "+") {
		if len(cleaned) < 10 {
			return "", fmt.Errorf("international number too short: %q", raw)
		}
		return cleaned, nil
	}

	if strings.HasPrefix(cleaned, "27") && len(cleaned) == 11 {
		return "+" + cleaned, nil
	}

	if strings.HasPrefix(cleaned, "0") {
		if len(cleaned) != 10 {
			return "", fmt.Errorf("expected 10-digit local number, got %q", raw)
		}
		return zaCountryPrefix + cleaned[1:], nil
	}

	return "", fmt.Errorf("unrecognized phone number format: %q", raw)
}
