package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// reasoningResponse is the JSON shape every prompt asks for.
type reasoningResponse struct {
	FinalInference     finalInference     `json:"final_inference"`
	StructuralAnalysis string             `json:"structural_analysis"`
	ValueAnalysis      string             `json:"value_analysis"`
	TemporalAnalysis   string             `json:"temporal_analysis"`
	Reasoning          string             `json:"reasoning"`
	Hypotheses         []model.Hypothesis `json:"hypotheses"`
	SearchTerms        []string           `json:"search_terms"`
	NeedsWebSearch     bool               `json:"needs_web_search"`
}

type finalInference struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// extractJSON returns the largest well-formed JSON object embedded in text.
// Markdown fences and surrounding prose are ignored.
func extractJSON(text string) ([]byte, error) {
	data := []byte(text)
	var best []byte

	for i := 0; i < len(data); {
		start := bytes.IndexByte(data[i:], '{')
		if start < 0 {
			break
		}
		start += i

		dec := json.NewDecoder(bytes.NewReader(data[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			i = start + 1
			continue
		}
		if len(raw) > len(best) {
			best = raw
		}
		i = start + int(dec.InputOffset())
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no JSON object found", common.ErrParseResponse)
	}
	return best, nil
}

// parseResponse decodes a reasoning response and validates its final inference.
func parseResponse(text string) (*reasoningResponse, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var resp reasoningResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrParseResponse, err)
	}

	resp.FinalInference.Name = strings.TrimSpace(resp.FinalInference.Name)
	if resp.FinalInference.Name == "" {
		return nil, fmt.Errorf("%w: final_inference.name is missing", common.ErrParseResponse)
	}
	resp.FinalInference.Confidence = clampConfidence(resp.FinalInference.Confidence)
	return &resp, nil
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1 && c <= 100:
		return c / 100
	case c > 1:
		return 1
	}
	return c
}

// toInference maps a parsed response onto the engine's result type.
func (r *reasoningResponse) toInference(tctx *model.TransactionContext) *model.MerchantInference {
	return &model.MerchantInference{
		Context:        tctx,
		Code:           tctx.Code,
		Name:           r.FinalInference.Name,
		Type:           model.ParseMerchantType(strings.ToLower(strings.TrimSpace(r.FinalInference.Type))),
		Summary:        strings.TrimSpace(r.FinalInference.Summary),
		Reasoning:      r.reasoning(),
		SearchTerms:    cleanTerms(r.SearchTerms),
		Hypotheses:     r.Hypotheses,
		Confidence:     r.FinalInference.Confidence,
		NeedsWebSearch: r.NeedsWebSearch,
	}
}

func (r *reasoningResponse) reasoning() string {
	var parts []string
	for _, section := range []struct{ label, text string }{
		{"Structure", r.StructuralAnalysis},
		{"Values", r.ValueAnalysis},
		{"Timing", r.TemporalAnalysis},
		{"Reasoning", r.Reasoning},
	} {
		if t := strings.TrimSpace(section.text); t != "" {
			parts = append(parts, section.label+": "+t)
		}
	}
	return strings.Join(parts, "\n")
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
