package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName renders a canonical code as a readable fallback merchant name.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.BrazilianPortuguese).String(strings.ToLower(code))
}
