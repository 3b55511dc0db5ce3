package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

func TestDiscoveryTable(t *testing.T) {
	name := "Uber Rides"
	discoveries := pendingDiscoveries("UBER", "NETFLIX")
	discoveries[0].Status = model.StatusCorrected
	discoveries[0].UserValidatedName = &name
	discoveries[0].ImpactScore = 133.3

	out := DiscoveryTable(discoveries)

	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "Uber Rides")
	assert.Contains(t, out, "NETFLIX Inc")
	assert.Contains(t, out, "133.3")
	assert.Contains(t, out, "corrected")
	assert.Contains(t, out, "60%")
}

func TestLearningTable(t *testing.T) {
	correction := "Uber Rides"
	records := []model.DiscoveryLearning{
		{ID: 1, OriginalCode: "NETFLIX", AIInference: "Netflix", AIConfidence: 0.9, WasCorrect: true},
		{ID: 2, OriginalCode: "UBER", AIInference: "Uber Eats", AIConfidence: 0.6, UserCorrection: &correction},
		{ID: 3, OriginalCode: "XYZ", AIInference: "Unknown", AIConfidence: 0.2},
	}

	out := LearningTable(records)

	assert.Contains(t, out, "correct")
	assert.Contains(t, out, "→ Uber Rides")
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "90%")
}

func TestContextTable(t *testing.T) {
	ranked := []analysis.RankedContext{{
		Context: &model.TransactionContext{
			Code:            "UBER",
			OccurrenceCount: 3,
			TotalAmount:     -67,
			TemporalPattern: model.TemporalPattern{Description: "irregular"},
		},
		Impact: 201,
	}}

	out := ContextTable(ranked)

	assert.Contains(t, out, "UBER")
	assert.Contains(t, out, "-67.00")
	assert.Contains(t, out, "irregular")
	assert.Contains(t, out, "201.0")
}

func TestFormatDiscovery(t *testing.T) {
	d := pendingDiscoveries("IFOOD")[0]
	d.UsedWebSearch = true
	d.ReasoningSummary = "Food delivery app"
	d.ContextSnapshot.RawVariations = []string{"A", "B", "C", "D", "E"}

	out := FormatDiscovery(&d)

	assert.Contains(t, out, "Code: IFOOD")
	assert.Contains(t, out, "IFOOD Inc")
	assert.Contains(t, out, "web search consulted")
	assert.Contains(t, out, "Food delivery app")
	assert.Contains(t, out, "2 more variations")
}

func TestConfidenceStyle(t *testing.T) {
	assert.Equal(t, SuccessStyle.GetForeground(), ConfidenceStyle(0.9).GetForeground())
	assert.Equal(t, InfoStyle.GetForeground(), ConfidenceStyle(0.7).GetForeground())
	assert.Equal(t, WarningStyle.GetForeground(), ConfidenceStyle(0.5).GetForeground())
	assert.Equal(t, ErrorStyle.GetForeground(), ConfidenceStyle(0.1).GetForeground())
}
