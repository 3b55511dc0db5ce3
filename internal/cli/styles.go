// Package cli provides styled terminal output and interactive review for the
// finance command.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#5B8DEF")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor indicates warnings or low confidence.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor indicates errors or rejected discoveries.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	// TableHeaderStyle is used for table headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(lipgloss.Color("#333"))

	// TableCellStyle formats table cells with appropriate padding.
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	SearchIcon  = "🔎"
	RobotIcon   = "🤖"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a section title.
func FormatTitle(title string) string {
	return TitleStyle.Render(SearchIcon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}

// ConfidenceStyle colors a confidence value by how much it can be trusted.
func ConfidenceStyle(confidence float64) lipgloss.Style {
	switch {
	case confidence >= 0.85:
		return SuccessStyle
	case confidence >= 0.7:
		return InfoStyle
	case confidence >= 0.5:
		return WarningStyle
	default:
		return ErrorStyle
	}
}

// StatusStyle colors a discovery status.
func StatusStyle(status model.DiscoveryStatus) lipgloss.Style {
	switch status {
	case model.StatusConfirmed, model.StatusCorrected:
		return SuccessStyle
	case model.StatusRejected:
		return ErrorStyle
	default:
		return WarningStyle
	}
}

// FormatConfidence renders confidence as a colored percentage.
func FormatConfidence(confidence float64) string {
	return ConfidenceStyle(confidence).Render(fmt.Sprintf("%.0f%%", confidence*100))
}

// FormatDiscovery renders the review card for one discovery.
func FormatDiscovery(d *model.MerchantDiscovery) string {
	snap := d.ContextSnapshot
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", BoldStyle.Render("Inference:"), d.ResolvedName())
	fmt.Fprintf(&b, "%s %s   %s %s\n",
		BoldStyle.Render("Confidence:"), FormatConfidence(d.Confidence),
		BoldStyle.Render("Type:"), d.MerchantType)
	if d.UsedWebSearch {
		b.WriteString(SubtleStyle.Render(SearchIcon+" web search consulted") + "\n")
	}
	if d.ReasoningSummary != "" {
		fmt.Fprintf(&b, "\n%s\n", d.ReasoningSummary)
	}

	fmt.Fprintf(&b, "\n%s Evidence:\n", ChartIcon)
	fmt.Fprintf(&b, "  Occurrences: %d   Total: %.2f   Mean: %.2f (CV %.2f)\n",
		snap.OccurrenceCount, snap.TotalAmount, snap.AmountStats.Mean, snap.AmountStats.CoefficientOfVariation)
	if snap.TemporalPattern.Description != "" {
		fmt.Fprintf(&b, "  Timing: %s\n", snap.TemporalPattern.Description)
	}
	if !snap.DateRange.First.IsZero() {
		fmt.Fprintf(&b, "  Seen: %s to %s\n",
			snap.DateRange.First.Format("2006-01-02"), snap.DateRange.Last.Format("2006-01-02"))
	}
	for i, v := range snap.RawVariations {
		if i == 3 {
			fmt.Fprintf(&b, "  %s\n", SubtleStyle.Render(fmt.Sprintf("… %d more variations", len(snap.RawVariations)-3)))
			break
		}
		fmt.Fprintf(&b, "  • %s\n", v)
	}
	fmt.Fprintf(&b, "\n%s", SubtleStyle.Render(fmt.Sprintf("Impact %.1f · %s", d.ImpactScore, d.ID)))

	return RenderBox("Code: "+d.RawCode, b.String())
}
