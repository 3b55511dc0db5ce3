package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/normalize"
)

var trailingNumber = regexp.MustCompile(`(\d+)\s*$`)

func codeStructure(code string, variations []string, locale normalize.Locale) model.CodeStructure {
	var cs model.CodeStructure

	specials := make(map[string]bool)
	for _, r := range code {
		switch {
		case unicode.IsLetter(r):
			cs.LetterCount++
		case unicode.IsDigit(r):
			cs.DigitCount++
		case unicode.IsSpace(r):
			cs.SpaceCount++
		default:
			specials[string(r)] = true
		}
	}

	folded := make([]string, 0, len(variations))
	for _, v := range variations {
		folded = append(folded, normalize.Fold(v))
	}

	suffixes := make(map[string]bool)
	keywords := make(map[string]bool)
	for _, v := range folded {
		for _, r := range v {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
				specials[string(r)] = true
			}
		}
		if strings.ContainsRune(v, '*') {
			cs.HasAsterisk = true
		}
		if m := trailingNumber.FindStringSubmatch(v); m != nil {
			suffixes[m[1]] = true
		}
		for _, tok := range strings.FieldsFunc(v, isSeparator) {
			if containsString(locale.PaymentKeywords, tok) {
				keywords[tok] = true
			}
		}
		if cs.DetectedPrefix == "" {
			cs.DetectedPrefix = detectPrefix(v, locale)
		}
	}

	cs.HasNumericSuffix = len(suffixes) > 1
	cs.SpecialChars = sortedKeys(specials)
	cs.PaymentKeywords = sortedKeys(keywords)
	return cs
}

// detectPrefix returns the text before an asterisk, or a leading token that
// names a known payment processor.
func detectPrefix(v string, locale normalize.Locale) string {
	if idx := strings.IndexByte(v, '*'); idx > 0 {
		if prefix := strings.TrimSpace(v[:idx]); prefix != "" {
			return prefix
		}
	}
	tokens := strings.FieldsFunc(v, isSeparator)
	if len(tokens) > 1 && locale.IsProcessorPrefix(tokens[0]) {
		return tokens[0]
	}
	return ""
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
