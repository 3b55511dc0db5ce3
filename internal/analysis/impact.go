package analysis

import (
	"math"
	"sort"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// unknownConfidencePenalty replaces 1/confidence when confidence is unusable.
const unknownConfidencePenalty = 10.0

// ImpactScore ranks how much reviewing a code is worth. Larger spend, more
// occurrences and lower confidence all raise the score. The magnitude of the
// total is used so expense totals rank the same way as income.
func ImpactScore(ctx model.TransactionContext, confidence float64) float64 {
	base := math.Abs(ctx.TotalAmount) * float64(ctx.OccurrenceCount)
	if confidence > 0 {
		return base * (1 / confidence)
	}
	return base * unknownConfidencePenalty
}

// RankedContext pairs a context with its impact score.
type RankedContext struct {
	Context    *model.TransactionContext `json:"context"`
	Confidence float64                   `json:"confidence"`
	Impact     float64                   `json:"impact_score"`
}

// RankByImpact scores contexts using known confidences (zero when unknown)
// and orders them by descending impact, then by code.
func RankByImpact(contexts map[string]*model.TransactionContext, confidence map[string]float64) []RankedContext {
	out := make([]RankedContext, 0, len(contexts))
	for code, c := range contexts {
		conf := confidence[code]
		out = append(out, RankedContext{Context: c, Confidence: conf, Impact: ImpactScore(*c, conf)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		return out[i].Context.Code < out[j].Context.Code
	})
	return out
}
