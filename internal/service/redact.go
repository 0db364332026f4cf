package service

import (
	"regexp"
	"strings"
)

var nonDigitRegex = regexp.MustCompile(`\D+`)

// maskIdentifier keeps the last four digits of card-like identifiers so logs
// never carry a full card number. Other identifiers are returned as-is.
func maskIdentifier(id string) string {
	digits := nonDigitRegex.ReplaceAllString(id, "")
	if len(digits) < 12 || len(digits) != len(strings.TrimSpace(id)) {
		return id
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
