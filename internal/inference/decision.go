package inference

import (
	"github.com/mp3fbf/finance-analyzer/internal/learning"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Confidence assigned to answers forced by prior human verdicts.
const (
	ConfirmedConfidence = 0.95
	CorrectedConfidence = 0.98
)

// Decision is the route chosen for one context before any reasoning call:
// either ForcedAnswer or FreeReasoning.
type Decision interface {
	decision()
}

// ForcedAnswer reuses the answer of a relevant prior verdict.
type ForcedAnswer struct {
	Record     model.DiscoveryLearning
	Match      learning.MatchKind
	Name       string
	Confidence float64
	// PriorError is set when the earlier inference was corrected by a human.
	PriorError bool
}

// FreeReasoning asks for a full analysis. Rejected, when set, is a prior
// verdict that rejected an earlier answer for a related code.
type FreeReasoning struct {
	Rejected *model.DiscoveryLearning
	Match    learning.MatchKind
}

func (ForcedAnswer) decision()  {}
func (FreeReasoning) decision() {}

// Decide picks the inference route for tctx given the learning history.
func Decide(tctx model.TransactionContext, history []model.DiscoveryLearning) Decision {
	rec, kind := learning.FindRelevant(tctx.Code, history)
	if rec == nil {
		return FreeReasoning{}
	}

	switch {
	case rec.WasCorrect:
		return ForcedAnswer{
			Record:     *rec,
			Match:      kind,
			Name:       rec.AIInference,
			Confidence: ConfirmedConfidence,
		}
	case rec.Corrected():
		return ForcedAnswer{
			Record:     *rec,
			Match:      kind,
			Name:       *rec.UserCorrection,
			Confidence: CorrectedConfidence,
			PriorError: true,
		}
	default:
		return FreeReasoning{Rejected: rec, Match: kind}
	}
}
