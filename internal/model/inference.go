package model

// Hypothesis is one candidate identity weighed by the reasoning service.
type Hypothesis struct {
	Name                  string   `json:"name"`
	SupportingEvidence    []string `json:"supporting_evidence,omitempty"`
	ContradictingEvidence []string `json:"contradicting_evidence,omitempty"`
	Probability           float64  `json:"probability,omitempty"`
}

// MerchantInference is the engine's answer for one transaction context.
type MerchantInference struct {
	Context        *TransactionContext `json:"context,omitempty"`
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	Type           MerchantType        `json:"type"`
	Summary        string              `json:"summary"`
	Reasoning      string              `json:"reasoning"`
	SearchTerms    []string            `json:"search_terms,omitempty"`
	Hypotheses     []Hypothesis        `json:"hypotheses,omitempty"`
	Confidence     float64             `json:"confidence"`
	NeedsWebSearch bool                `json:"needs_web_search"`
	UsedWebSearch  bool                `json:"used_web_search"`
	FromLearning   bool                `json:"from_learning"`
}

// SearchResult is one hit returned by a web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResponse is the outcome of one web search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Summary string         `json:"summary"`
	Results []SearchResult `json:"results"`
}

// Empty reports whether the search produced nothing usable.
func (r SearchResponse) Empty() bool {
	return len(r.Results) == 0
}

// Stage names a discovery workflow step.
type Stage string

// Workflow stages.
const (
	StageIdle      Stage = "idle"
	StageAnalyzing Stage = "analyzing"
	StageInferring Stage = "inferring"
	StageSaving    Stage = "saving"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
)

// Progress is emitted to progress sinks while a run advances.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}
