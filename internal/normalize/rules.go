package normalize

import (
	"regexp"
	"strings"
)

// Rule is one named rewrite in the aggressive pipeline.
type Rule struct {
	Apply func(string) string
	Name  string
}

var (
	fusedDigitsBeforeSpace = regexp.MustCompile(`\b([A-Z]+)\d+(\s)`)
	hyphenSuffix           = regexp.MustCompile(`\s*-\s*[A-Z0-9]{1,6}$`)
	longNumericSuffix      = regexp.MustCompile(`\s*\d{6,}$`)
	shortNumericSuffix     = regexp.MustCompile(`\s*\d{1,5}$`)
	spacedShortNumeric     = regexp.MustCompile(`\s+\d{1,5}$`)
	fusedTrailingDigits    = regexp.MustCompile(`([A-Z])\d+$`)
	shortNumberToken       = regexp.MustCompile(`^\d{1,3}$`)
)

// DefaultRules builds the ordered aggressive rule table for a locale.
func DefaultRules(locale Locale) []Rule {
	suffixes := locale.locationSuffixes()

	return []Rule{
		{Name: "fused-digits-before-space", Apply: func(s string) string {
			return fusedDigitsBeforeSpace.ReplaceAllString(s, "$1$2")
		}},
		{Name: "isolated-short-numbers", Apply: dropIsolatedShortNumbers},
		{Name: "plural-forms", Apply: func(s string) string {
			return singularize(s, locale.PluralForms)
		}},
		{Name: "asterisk-truncation", Apply: truncateAtAsterisk},
		{Name: "hyphen-suffix", Apply: guarded(func(s string) string {
			return hyphenSuffix.ReplaceAllString(s, "")
		}, 2)},
		{Name: "mixed-alphanumeric-suffix", Apply: dropMixedAlphanumericSuffix},
		{Name: "long-numeric-suffix", Apply: guarded(func(s string) string {
			return longNumericSuffix.ReplaceAllString(s, "")
		}, 1)},
		{Name: "short-numeric-suffix", Apply: guarded(func(s string) string {
			return spacedShortNumeric.ReplaceAllString(s, "")
		}, 3)},
		{Name: "fused-trailing-digits", Apply: guarded(func(s string) string {
			return fusedTrailingDigits.ReplaceAllString(s, "$1")
		}, 3)},
		{Name: "hex-suffix", Apply: dropHexSuffix},
		{Name: "location-suffix", Apply: guarded(func(s string) string {
			return dropLocationSuffix(s, suffixes)
		}, 2)},
		{Name: "duplicate-tokens", Apply: collapseDuplicateTokens},
		{Name: "whitespace", Apply: collapseWhitespace},
	}
}

// guarded discards fn's rewrite when it leaves fewer than minLen characters.
func guarded(fn func(string) string, minLen int) func(string) string {
	return func(s string) string {
		out := strings.TrimSpace(fn(s))
		if len(out) < minLen {
			return s
		}
		return out
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dropIsolatedShortNumbers(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 3 {
		return s
	}
	kept := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if i > 0 && i < len(tokens)-1 && shortNumberToken.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// singularize only applies mappings that shorten the token so the pipeline
// always converges.
func singularize(s string, forms map[string]string) string {
	if len(forms) == 0 {
		return s
	}
	tokens := strings.Fields(s)
	changed := false
	for i, tok := range tokens {
		if single, ok := forms[tok]; ok && single != "" && len(single) < len(tok) {
			tokens[i] = single
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(tokens, " ")
}

func truncateAtAsterisk(s string) string {
	idx := strings.IndexByte(s, '*')
	if idx < 0 {
		return s
	}
	prefix := strings.TrimSpace(s[:idx])
	if len(prefix) < 2 {
		return s
	}
	return prefix
}

func dropMixedAlphanumericSuffix(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	last := tokens[len(tokens)-1]
	if len(last) < 6 {
		return s
	}
	var letters, digits bool
	for _, r := range last {
		switch {
		case r >= 'A' && r <= 'Z':
			letters = true
		case r >= '0' && r <= '9':
			digits = true
		default:
			return s
		}
	}
	if !letters || !digits {
		return s
	}
	return strings.Join(tokens[:len(tokens)-1], " ")
}

func dropHexSuffix(s string) string {
	i := len(s)
	hasDigit := false
	for i > 0 {
		c := s[i-1]
		if c >= '0' && c <= '9' {
			hasDigit = true
		} else if c < 'A' || c > 'F' {
			break
		}
		i--
	}
	if len(s)-i < 8 || !hasDigit {
		return s
	}
	prefix := strings.TrimSpace(s[:i])
	if len(prefix) < 2 {
		return s
	}
	return prefix
}

func dropLocationSuffix(s string, suffixes []string) string {
	for _, w := range suffixes {
		if strings.HasSuffix(s, " "+w) {
			out := strings.TrimSpace(s[:len(s)-len(w)-1])
			if out != "" {
				return out
			}
		}
	}
	return s
}

func collapseDuplicateTokens(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	kept := []string{tokens[0]}
	for _, tok := range tokens[1:] {
		if tok != kept[len(kept)-1] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
