package inference

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	reasoningTemplate = "reasoning.tmpl"
	forcedTemplate    = "forced.tmpl"
	refineTemplate    = "refine.tmpl"
)

// PromptBuilder renders the prompts sent to the reasoning service.
type PromptBuilder struct {
	templates *template.Template
}

// NewPromptBuilder parses the embedded templates.
func NewPromptBuilder() (*PromptBuilder, error) {
	funcMap := template.FuncMap{
		"formatAmount": formatAmount,
		"formatDate":   formatDate,
		"truncate":     truncate,
		"join":         strings.Join,
		"weekdays":     weekdays,
	}

	tmpl, err := template.New("prompts").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	return &PromptBuilder{templates: tmpl}, nil
}

type reasoningData struct {
	Context  *model.TransactionContext
	Rejected *model.DiscoveryLearning
	Digest   string
}

type forcedData struct {
	Context *model.TransactionContext
	Forced  ForcedAnswer
}

type refineData struct {
	Context  *model.TransactionContext
	Previous *model.MerchantInference
	Search   model.SearchResponse
}

// Reasoning renders the full-analysis prompt.
func (pb *PromptBuilder) Reasoning(tctx *model.TransactionContext, d FreeReasoning, digest string) (string, error) {
	return pb.render(reasoningTemplate, reasoningData{Context: tctx, Rejected: d.Rejected, Digest: digest})
}

// Forced renders the prompt that pins the answer to a prior verdict.
func (pb *PromptBuilder) Forced(tctx *model.TransactionContext, d ForcedAnswer) (string, error) {
	return pb.render(forcedTemplate, forcedData{Context: tctx, Forced: d})
}

// Refine renders the follow-up prompt carrying web search results.
func (pb *PromptBuilder) Refine(tctx *model.TransactionContext, prev *model.MerchantInference, search model.SearchResponse) (string, error) {
	return pb.render(refineTemplate, refineData{Context: tctx, Previous: prev, Search: search})
}

func (pb *PromptBuilder) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := pb.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("R$ %.2f", amount)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func weekdays(counts [7]int) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, " ")
}
