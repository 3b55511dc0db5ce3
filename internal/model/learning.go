package model

import "time"

// ErrorType classifies how wrong a rejected or corrected inference was.
type ErrorType string

// Error types recorded with negative feedback.
const (
	ErrorCompletelyWrong  ErrorType = "completely_wrong"
	ErrorPartiallyCorrect ErrorType = "partially_correct"
	ErrorMissingNuance    ErrorType = "missing_nuance"
)

// ContextFeatures is the subset of context kept with each learning record.
type ContextFeatures struct {
	TemporalPatternDescription string  `json:"temporal_pattern_description"`
	ValueCV                    float64 `json:"value_cv"`
	OccurrenceCount            int     `json:"occurrence_count"`
	HasAsterisk                bool    `json:"has_asterisk"`
	HasNumericSuffix           bool    `json:"has_numeric_suffix"`
}

// DiscoveryLearning is one human verdict on an inference. Records are append-only.
type DiscoveryLearning struct {
	CreatedAt        time.Time       `json:"created_at"`
	UserCorrection   *string         `json:"user_correction,omitempty"`
	ErrorType        *ErrorType      `json:"error_type,omitempty"`
	ContextFeatures  ContextFeatures `json:"context_features"`
	PatternSignature string          `json:"pattern_signature"`
	OriginalCode     string          `json:"original_code"`
	ContextSummary   string          `json:"context_summary"`
	AIInference      string          `json:"ai_inference"`
	ID               int64           `json:"id"`
	AIConfidence     float64         `json:"ai_confidence"`
	WasCorrect       bool            `json:"was_correct"`
}

// Corrected reports whether the record carries a replacement name.
func (l *DiscoveryLearning) Corrected() bool {
	return !l.WasCorrect && l.UserCorrection != nil && *l.UserCorrection != ""
}
