package learning

import (
	"fmt"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// maxDigestEntries bounds how many records are rendered into a prompt.
const maxDigestEntries = 50

// Digest renders the newest learning records as compact prompt lines.
func Digest(history []model.DiscoveryLearning) string {
	if len(history) == 0 {
		return ""
	}

	ordered := newestFirst(history)
	if len(ordered) > maxDigestEntries {
		ordered = ordered[:maxDigestEntries]
	}

	var b strings.Builder
	for _, rec := range ordered {
		fmt.Fprintf(&b, "- %s [%s]: inferred %q (%.2f) -> %s\n",
			rec.OriginalCode, rec.PatternSignature, rec.AIInference, rec.AIConfidence, outcome(rec))
	}
	return strings.TrimRight(b.String(), "\n")
}

func outcome(rec model.DiscoveryLearning) string {
	switch {
	case rec.WasCorrect:
		return "confirmed"
	case rec.Corrected():
		return fmt.Sprintf("corrected to %q%s", *rec.UserCorrection, errorSuffix(rec))
	default:
		return "rejected" + errorSuffix(rec)
	}
}

func errorSuffix(rec model.DiscoveryLearning) string {
	if rec.ErrorType == nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", *rec.ErrorType)
}

// Summary tallies learning outcomes.
type Summary struct {
	Total     int     `json:"total"`
	Confirmed int     `json:"confirmed"`
	Corrected int     `json:"corrected"`
	Rejected  int     `json:"rejected"`
	Accuracy  float64 `json:"accuracy"`
}

// Summarize counts outcomes across history.
func Summarize(history []model.DiscoveryLearning) Summary {
	s := Summary{Total: len(history)}
	for _, rec := range history {
		switch {
		case rec.WasCorrect:
			s.Confirmed++
		case rec.Corrected():
			s.Corrected++
		default:
			s.Rejected++
		}
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Confirmed) / float64(s.Total)
	}
	return s
}
