// Package learning turns human verdicts on merchant inferences into records
// that bias later inferences.
package learning

import (
	"fmt"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Bucket labels used in pattern signatures.
const (
	CVRegular  = "regular"
	CVModerate = "moderate"
	CVVariable = "variable"

	FrequencyFrequent   = "frequent"
	FrequencyOccasional = "occasional"
	FrequencyRare       = "rare"
)

// CVBucket classifies a coefficient of variation.
func CVBucket(cv float64) string {
	switch {
	case cv < 0.3:
		return CVRegular
	case cv < 0.7:
		return CVModerate
	default:
		return CVVariable
	}
}

// FrequencyBucket classifies an occurrence count.
func FrequencyBucket(count int) string {
	switch {
	case count > 10:
		return FrequencyFrequent
	case count > 3:
		return FrequencyOccasional
	default:
		return FrequencyRare
	}
}

// PatternSignature builds a categorical fingerprint of a context. Codes with
// the same shape share a signature regardless of their text.
func PatternSignature(ctx model.TransactionContext) string {
	cs := ctx.CodeStructure
	parts := []string{
		flag(cs.HasAsterisk, "asterisk", "no-asterisk"),
		flag(cs.HasNumericSuffix, "numeric-suffix", "no-suffix"),
		flag(len(cs.PaymentKeywords) > 0, "payment-keyword", "no-keyword"),
		CVBucket(ctx.AmountStats.CoefficientOfVariation),
		FrequencyBucket(ctx.OccurrenceCount),
	}
	return strings.Join(parts, "|")
}

// ContextSummary renders a one-line description of a context.
func ContextSummary(ctx model.TransactionContext) string {
	return fmt.Sprintf("%d occurrences, total %.2f, %s",
		ctx.OccurrenceCount, ctx.TotalAmount, ctx.TemporalPattern.Description)
}

// Features extracts the context features stored with a learning record.
func Features(ctx model.TransactionContext) model.ContextFeatures {
	return model.ContextFeatures{
		HasAsterisk:                ctx.CodeStructure.HasAsterisk,
		HasNumericSuffix:           ctx.CodeStructure.HasNumericSuffix,
		ValueCV:                    ctx.AmountStats.CoefficientOfVariation,
		OccurrenceCount:            ctx.OccurrenceCount,
		TemporalPatternDescription: ctx.TemporalPattern.Description,
	}
}

func flag(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
