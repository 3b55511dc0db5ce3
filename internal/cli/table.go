package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// DiscoveryTable renders discoveries in the order given.
func DiscoveryTable(discoveries []model.MerchantDiscovery) string {
	t := newTable("CODE", "MERCHANT", "TYPE", "CONF", "IMPACT", "STATUS", "ID")
	for i := range discoveries {
		d := &discoveries[i]
		t.Row(
			d.RawCode,
			d.ResolvedName(),
			string(d.MerchantType),
			FormatConfidence(d.Confidence),
			fmt.Sprintf("%.1f", d.ImpactScore),
			StatusStyle(d.Status).Render(string(d.Status)),
			d.ID,
		)
	}
	return t.Render()
}

// LearningTable renders learning records.
func LearningTable(records []model.DiscoveryLearning) string {
	t := newTable("#", "CODE", "AI SAID", "CONF", "VERDICT", "SIGNATURE")
	for i := range records {
		rec := &records[i]
		verdict := SuccessStyle.Render("correct")
		switch {
		case rec.Corrected():
			verdict = WarningStyle.Render("→ " + *rec.UserCorrection)
		case !rec.WasCorrect:
			verdict = ErrorStyle.Render("rejected")
		}
		t.Row(
			strconv.FormatInt(rec.ID, 10),
			rec.OriginalCode,
			rec.AIInference,
			fmt.Sprintf("%.0f%%", rec.AIConfidence*100),
			verdict,
			rec.PatternSignature,
		)
	}
	return t.Render()
}

// ContextTable renders contexts ranked by impact.
func ContextTable(ranked []analysis.RankedContext) string {
	t := newTable("CODE", "N", "TOTAL", "MEAN", "CV", "TIMING", "IMPACT")
	for _, rc := range ranked {
		c := rc.Context
		t.Row(
			c.Code,
			strconv.Itoa(c.OccurrenceCount),
			fmt.Sprintf("%.2f", c.TotalAmount),
			fmt.Sprintf("%.2f", c.AmountStats.Mean),
			fmt.Sprintf("%.2f", c.AmountStats.CoefficientOfVariation),
			c.TemporalPattern.Description,
			fmt.Sprintf("%.1f", rc.Impact),
		)
	}
	return t.Render()
}
