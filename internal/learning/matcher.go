package learning

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// MatchKind says how a learning record was related to a code.
type MatchKind string

// Match kinds in priority order.
const (
	MatchNone       MatchKind = ""
	MatchExact      MatchKind = "exact"
	MatchPrefix     MatchKind = "prefix"
	MatchStructural MatchKind = "structural"
	MatchSubstring  MatchKind = "substring"
)

// minSubstringLen keeps very short codes from matching everything.
const minSubstringLen = 3

var (
	longAlnumRun = regexp.MustCompile(`[A-Z0-9]{10,}`)
	digitRun     = regexp.MustCompile(`\d+`)
)

type matcher func(code string, rec *model.DiscoveryLearning) bool

var priority = []struct {
	match matcher
	kind  MatchKind
}{
	{kind: MatchExact, match: func(code string, rec *model.DiscoveryLearning) bool {
		return rec.OriginalCode == code
	}},
	{kind: MatchPrefix, match: sharesTwoTokenPrefix},
	{kind: MatchStructural, match: func(code string, rec *model.DiscoveryLearning) bool {
		key := structureKey(code)
		return key != code && key == structureKey(rec.OriginalCode)
	}},
	{kind: MatchSubstring, match: func(code string, rec *model.DiscoveryLearning) bool {
		a, b := code, rec.OriginalCode
		if len(a) > len(b) {
			a, b = b, a
		}
		return len(a) >= minSubstringLen && strings.Contains(b, a)
	}},
}

// FindRelevant returns the most relevant prior record for code. Match kinds are
// tried in priority order and, within a kind, the newest record wins.
func FindRelevant(code string, history []model.DiscoveryLearning) (*model.DiscoveryLearning, MatchKind) {
	if code == "" || len(history) == 0 {
		return nil, MatchNone
	}

	ordered := newestFirst(history)
	for _, p := range priority {
		for i := range ordered {
			if p.match(code, &ordered[i]) {
				rec := ordered[i]
				return &rec, p.kind
			}
		}
	}
	return nil, MatchNone
}

func newestFirst(history []model.DiscoveryLearning) []model.DiscoveryLearning {
	ordered := append([]model.DiscoveryLearning(nil), history...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})
	return ordered
}

// sharesTwoTokenPrefix matches when the first two tokens of either code open
// the other.
func sharesTwoTokenPrefix(code string, rec *model.DiscoveryLearning) bool {
	a := strings.Fields(code)
	b := strings.Fields(rec.OriginalCode)
	return (len(a) >= 2 && hasTokenPrefix(b, a[:2])) ||
		(len(b) >= 2 && hasTokenPrefix(a, b[:2]))
}

func hasTokenPrefix(tokens, prefix []string) bool {
	if len(tokens) < len(prefix) {
		return false
	}
	for i := range prefix {
		if tokens[i] != prefix[i] {
			return false
		}
	}
	return true
}

// structureKey replaces long identifier runs and numbers with placeholders.
func structureKey(code string) string {
	key := longAlnumRun.ReplaceAllStringFunc(code, func(run string) string {
		if strings.ContainsAny(run, "0123456789") {
			return "@"
		}
		return run
	})
	return digitRun.ReplaceAllString(key, "#")
}
