// Package inference turns transaction contexts into merchant inferences using
// a reasoning service, prior human verdicts and optional web search.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/learning"
	"github.com/mp3fbf/finance-analyzer/internal/llm"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/search"
)

// Defaults for Options.
const (
	DefaultSearchThreshold = 0.7
	DefaultMaxConcurrency  = 5
	DefaultSearchResults   = 5
)

// Inference paths reported to Metrics.
const (
	PathForced    = "forced"
	PathReasoning = "reasoning"
)

// Search outcomes reported to Metrics.
const (
	SearchRefined = "refined"
	SearchEmpty   = "empty"
	SearchFailed  = "failed"
	SearchIgnored = "unparsed"
)

// Metrics receives engine observations.
type Metrics interface {
	InferenceCompleted(path string, elapsed time.Duration, err error)
	SearchPerformed(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) InferenceCompleted(string, time.Duration, error) {}
func (nopMetrics) SearchPerformed(string)                          {}

// Options tunes an Engine.
type Options struct {
	Searcher        search.Searcher
	Metrics         Metrics
	Logger          *slog.Logger
	SearchThreshold float64
	MaxConcurrency  int
	SearchResults   int
}

// Engine infers merchants for transaction contexts.
type Engine struct {
	client          llm.Client
	searcher        search.Searcher
	metrics         Metrics
	prompts         *PromptBuilder
	logger          *slog.Logger
	searchThreshold float64
	maxConcurrency  int
	searchResults   int
}

// NewEngine creates an engine around a reasoning client.
func NewEngine(client llm.Client, opts Options) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: reasoning client is required", common.ErrInvalidInput)
	}
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		client:          client,
		searcher:        opts.Searcher,
		metrics:         opts.Metrics,
		prompts:         prompts,
		logger:          common.LoggerOrDefault(opts.Logger),
		searchThreshold: opts.SearchThreshold,
		maxConcurrency:  opts.MaxConcurrency,
		searchResults:   opts.SearchResults,
	}
	if e.searcher == nil {
		e.searcher = search.Noop{}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	if e.searchThreshold <= 0 {
		e.searchThreshold = DefaultSearchThreshold
	}
	if e.maxConcurrency <= 0 {
		e.maxConcurrency = DefaultMaxConcurrency
	}
	if e.searchResults <= 0 {
		e.searchResults = DefaultSearchResults
	}
	return e, nil
}

// Infer produces one inference for tctx.
func (e *Engine) Infer(ctx context.Context, tctx *model.TransactionContext, history []model.DiscoveryLearning) (*model.MerchantInference, error) {
	if tctx == nil || tctx.Code == "" {
		return nil, fmt.Errorf("%w: empty transaction context", common.ErrInvalidInput)
	}

	start := time.Now()
	var (
		inf  *model.MerchantInference
		err  error
		path string
	)

	switch d := Decide(*tctx, history).(type) {
	case ForcedAnswer:
		path = PathForced
		inf, err = e.forced(ctx, tctx, d)
	case FreeReasoning:
		path = PathReasoning
		inf, err = e.reason(ctx, tctx, d, history)
	}

	e.metrics.InferenceCompleted(path, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", common.ErrInferenceFailed, tctx.Code, err)
	}
	return inf, nil
}

// forced asks the service to explain the known answer. The known answer wins
// regardless of the reply; a failed call falls back to the learning record.
func (e *Engine) forced(ctx context.Context, tctx *model.TransactionContext, d ForcedAnswer) (*model.MerchantInference, error) {
	inf := &model.MerchantInference{
		Context:      tctx,
		Code:         tctx.Code,
		Type:         model.MerchantOther,
		Summary:      d.Record.ContextSummary,
		Reasoning:    fmt.Sprintf("Reused a %s review of %s (%s match).", reviewLabel(d), d.Record.OriginalCode, d.Match),
		FromLearning: true,
	}

	prompt, err := e.prompts.Forced(tctx, d)
	if err != nil {
		return nil, err
	}

	text, err := e.client.Complete(ctx, prompt)
	if err == nil {
		var resp *reasoningResponse
		if resp, err = parseResponse(text); err == nil {
			inf = resp.toInference(tctx)
			inf.FromLearning = true
			inf.NeedsWebSearch = false
			inf.SearchTerms = nil
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("Forced inference call failed, using learning record",
			"code", tctx.Code,
			"error", err)
	}

	inf.Name = d.Name
	inf.Confidence = d.Confidence
	return inf, nil
}

func reviewLabel(d ForcedAnswer) string {
	if d.PriorError {
		return "corrected"
	}
	return "confirmed"
}

func (e *Engine) reason(ctx context.Context, tctx *model.TransactionContext, d FreeReasoning, history []model.DiscoveryLearning) (*model.MerchantInference, error) {
	prompt, err := e.prompts.Reasoning(tctx, d, learning.Digest(history))
	if err != nil {
		return nil, err
	}

	text, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	resp, err := parseResponse(text)
	if err != nil {
		return nil, err
	}
	inf := resp.toInference(tctx)

	if !e.needsSearch(inf) {
		return inf, nil
	}
	return e.escalate(ctx, tctx, inf), nil
}

func (e *Engine) needsSearch(inf *model.MerchantInference) bool {
	return inf.NeedsWebSearch || inf.Confidence < e.searchThreshold || len(inf.SearchTerms) > 0
}

// escalate runs one web search and a refinement round. Any failure keeps the
// pre-search inference.
func (e *Engine) escalate(ctx context.Context, tctx *model.TransactionContext, inf *model.MerchantInference) *model.MerchantInference {
	query := searchQuery(inf)
	logger := e.logger.With("code", tctx.Code, "query", query)

	results, err := e.searcher.Search(ctx, query, e.searchResults)
	if err != nil {
		e.metrics.SearchPerformed(SearchFailed)
		logger.Warn("Web search failed, keeping initial inference", "error", err)
		return inf
	}
	if results.Empty() {
		e.metrics.SearchPerformed(SearchEmpty)
		logger.Debug("Web search returned no results")
		return inf
	}

	prompt, err := e.prompts.Refine(tctx, inf, results)
	if err != nil {
		logger.Warn("Failed to build refine prompt", "error", err)
		return inf
	}
	text, err := e.client.Complete(ctx, prompt)
	if err != nil {
		e.metrics.SearchPerformed(SearchFailed)
		logger.Warn("Refinement call failed, keeping initial inference", "error", err)
		return inf
	}
	resp, err := parseResponse(text)
	if err != nil {
		e.metrics.SearchPerformed(SearchIgnored)
		logger.Warn("Refinement response unparseable, keeping initial inference", "error", err)
		return inf
	}

	e.metrics.SearchPerformed(SearchRefined)
	refined := resp.toInference(tctx)
	refined.UsedWebSearch = true
	if len(refined.Hypotheses) == 0 {
		refined.Hypotheses = inf.Hypotheses
	}
	return refined
}

// searchQuery prefers the first suggested term and falls back to the code.
func searchQuery(inf *model.MerchantInference) string {
	for _, t := range inf.SearchTerms {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return fmt.Sprintf("%q cobrança cartão empresa", inf.Code)
}

// EventType names a batch event.
type EventType string

// Batch event types.
const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event reports batch progress. Current counts completions, so it follows
// completion order rather than submission order.
type Event struct {
	Err       error                    `json:"-"`
	Inference *model.MerchantInference `json:"inference,omitempty"`
	Type      EventType                `json:"type"`
	Code      string                   `json:"code,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Current   int                      `json:"current"`
	Total     int                      `json:"total"`
}

type outcome struct {
	err   error
	inf   *model.MerchantInference
	index int
}

// InferBatch infers all contexts concurrently and returns the successful
// results in input order. Failures are logged and dropped. onEvent, when set,
// is called from a single goroutine.
func (e *Engine) InferBatch(ctx context.Context, contexts []*model.TransactionContext, history []model.DiscoveryLearning, onEvent func(Event)) []model.MerchantInference {
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	total := len(contexts)
	emit(Event{Type: EventStart, Total: total, Message: fmt.Sprintf("Inferring %d merchant codes", total)})

	sem := semaphore.NewWeighted(int64(e.maxConcurrency))
	outcomes := make(chan outcome, total)
	var wg sync.WaitGroup

	for i, tctx := range contexts {
		wg.Add(1)
		go func(i int, tctx *model.TransactionContext) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes <- outcome{index: i, err: err}
				return
			}
			defer sem.Release(1)

			inf, err := e.Infer(ctx, tctx, history)
			outcomes <- outcome{index: i, inf: inf, err: err}
		}(i, tctx)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]*model.MerchantInference, total)
	done, failed := 0, 0
	for o := range outcomes {
		done++
		code := ""
		if contexts[o.index] != nil {
			code = contexts[o.index].Code
		}
		emit(Event{
			Type:    EventProgress,
			Code:    code,
			Current: done,
			Total:   total,
			Message: fmt.Sprintf("Analyzed %s (%d/%d)", code, done, total),
		})

		if o.err != nil {
			failed++
			e.logger.Warn("Inference failed", "code", code, "error", o.err)
			emit(Event{Type: EventError, Code: code, Current: done, Total: total, Err: o.err, Error: o.err.Error()})
			continue
		}
		results[o.index] = o.inf
		emit(Event{Type: EventResult, Code: code, Current: done, Total: total, Inference: o.inf})
	}

	out := make([]model.MerchantInference, 0, total-failed)
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	emit(Event{
		Type:    EventComplete,
		Current: done,
		Total:   total,
		Message: fmt.Sprintf("Inferred %d of %d merchant codes", len(out), total),
	})
	return out
}

// Stream runs InferBatch and delivers its events on the returned channel,
// which is closed after the complete event. The buffer holds every event of
// the batch, so the producer finishes even if the consumer stops reading.
func (e *Engine) Stream(ctx context.Context, contexts []*model.TransactionContext, history []model.DiscoveryLearning) <-chan Event {
	// start, complete, and a progress plus result or error per context.
	events := make(chan Event, 2*len(contexts)+2)
	go func() {
		defer close(events)
		e.InferBatch(ctx, contexts, history, func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return events
}

// Existing is what the filter needs to know about a stored discovery.
type Existing struct {
	Confidence float64
	Confirmed  bool
}

// ExistingFromDiscoveries indexes stored discoveries by code.
func ExistingFromDiscoveries(discoveries []model.MerchantDiscovery) map[string]Existing {
	out := make(map[string]Existing, len(discoveries))
	for i := range discoveries {
		d := &discoveries[i]
		out[d.RawCode] = Existing{Confidence: d.Confidence, Confirmed: d.Confirmed()}
	}
	return out
}

// FilterNeedingInference keeps contexts with no stored discovery, or whose
// stored discovery is unconfirmed with confidence below threshold.
func FilterNeedingInference(contexts []*model.TransactionContext, existing map[string]Existing, threshold float64) []*model.TransactionContext {
	out := make([]*model.TransactionContext, 0, len(contexts))
	for _, tctx := range contexts {
		prev, ok := existing[tctx.Code]
		if !ok || (!prev.Confirmed && prev.Confidence < threshold) {
			out = append(out, tctx)
		}
	}
	return out
}
