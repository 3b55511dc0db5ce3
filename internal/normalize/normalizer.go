// Package normalize turns raw statement descriptions into canonical merchant codes.
//
// Two keys are produced. The conservative key only cleans case, whitespace and
// trailing numbers; the aggressive key runs an ordered, locale-driven rule table
// and is the grouping key used by discovery.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer applies a rule table to descriptions. It is safe for concurrent use.
type Normalizer struct {
	locale Locale
	rules  []Rule
}

// New creates a Normalizer for locale with its default rule table.
func New(locale Locale) *Normalizer {
	return &Normalizer{locale: locale, rules: DefaultRules(locale)}
}

// NewWithRules creates a Normalizer with a caller-supplied rule table.
func NewWithRules(locale Locale, rules []Rule) *Normalizer {
	return &Normalizer{locale: locale, rules: append([]Rule(nil), rules...)}
}

// Default returns a Normalizer for Brazilian statements.
func Default() *Normalizer {
	return New(BrazilianLocale())
}

// Locale returns the word lists the normalizer was built with.
func (n *Normalizer) Locale() Locale {
	return n.locale
}

// Rules returns the names of the aggressive rules in application order.
func (n *Normalizer) Rules() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.Name
	}
	return names
}

// Conservative uppercases, trims and collapses whitespace, then strips a
// trailing long numeric run and a trailing short one when enough remains.
func (n *Normalizer) Conservative(raw string) string {
	s := prepare(raw)
	if s == "" {
		return s
	}
	if out := strings.TrimSpace(longNumericSuffix.ReplaceAllString(s, "")); out != "" {
		s = out
	}
	if out := strings.TrimSpace(shortNumericSuffix.ReplaceAllString(s, "")); len(out) > 2 {
		s = out
	}
	return s
}

// Aggressive runs the rule table until the code stops changing. Every default
// rule either leaves its input alone or shortens it, so the loop converges and
// Aggressive(Aggressive(x)) == Aggressive(x).
func (n *Normalizer) Aggressive(raw string) string {
	s := prepare(raw)
	if s == "" {
		return s
	}
	for pass := 0; pass <= len(s); pass++ {
		next := n.applyOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// Trace returns the code after each rule of a single pass. Used by the CLI
// normalize command to explain a key.
func (n *Normalizer) Trace(raw string) []Step {
	s := prepare(raw)
	steps := make([]Step, 0, len(n.rules))
	for _, r := range n.rules {
		next := r.Apply(s)
		if next == "" {
			next = s
		}
		steps = append(steps, Step{Rule: r.Name, Before: s, After: next})
		s = next
	}
	return steps
}

// Step is one rule application recorded by Trace.
type Step struct {
	Rule   string
	Before string
	After  string
}

// Changed reports whether the rule rewrote its input.
func (s Step) Changed() bool {
	return s.Before != s.After
}

func (n *Normalizer) applyOnce(s string) string {
	for _, r := range n.rules {
		next := r.Apply(s)
		if strings.TrimSpace(next) == "" {
			continue
		}
		s = next
	}
	return s
}

// Fold applies the preparation shared by both keys: diacritics removed,
// uppercased, whitespace collapsed.
func Fold(s string) string {
	return prepare(s)
}

// prepare folds diacritics, uppercases and collapses whitespace.
func prepare(raw string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		folded = raw
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
