// Package analysis derives transaction contexts and impact scores for merchant codes.
package analysis

import (
	"sort"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/normalize"
)

const (
	maxCoOccurring = 10
	maxSamples     = 5
)

// Extractor groups transactions by canonical code and builds their contexts.
type Extractor struct {
	normalizer *normalize.Normalizer
}

// NewExtractor creates an Extractor keyed by n's aggressive code.
func NewExtractor(n *normalize.Normalizer) *Extractor {
	if n == nil {
		n = normalize.Default()
	}
	return &Extractor{normalizer: n}
}

// Code returns the canonical code for a transaction.
func (e *Extractor) Code(txn model.Transaction) string {
	return e.normalizer.Aggressive(txn.SourceText())
}

// Group buckets transactions by canonical code. Transactions whose description
// normalizes to nothing are skipped.
func (e *Extractor) Group(all []model.Transaction) map[string][]model.Transaction {
	groups := make(map[string][]model.Transaction)
	for _, txn := range all {
		code := e.Code(txn)
		if code == "" {
			continue
		}
		groups[code] = append(groups[code], txn)
	}
	return groups
}

// AnalyzeAll builds one context per distinct code in a single pass.
func (e *Extractor) AnalyzeAll(all []model.Transaction) map[string]*model.TransactionContext {
	groups := e.Group(all)
	index := buildDateIndex(groups)

	contexts := make(map[string]*model.TransactionContext, len(groups))
	for code, group := range groups {
		ctx := e.extract(code, group, index)
		contexts[code] = &ctx
	}
	return contexts
}

// ExtractContext builds the context for one code. all is the full transaction
// set, used for co-occurrence.
func (e *Extractor) ExtractContext(code string, group, all []model.Transaction) model.TransactionContext {
	return e.extract(code, group, buildDateIndex(e.Group(all)))
}

// SortedContexts returns the contexts ordered by code.
func SortedContexts(contexts map[string]*model.TransactionContext) []*model.TransactionContext {
	out := make([]*model.TransactionContext, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// dateIndex maps a calendar date to the codes seen that day and their counts.
type dateIndex map[string]map[string]int

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func buildDateIndex(groups map[string][]model.Transaction) dateIndex {
	index := make(dateIndex)
	for code, group := range groups {
		for _, txn := range group {
			key := dateKey(txn.Date)
			if index[key] == nil {
				index[key] = make(map[string]int)
			}
			index[key][code]++
		}
	}
	return index
}

func (e *Extractor) extract(code string, group []model.Transaction, index dateIndex) model.TransactionContext {
	ctx := model.TransactionContext{
		Code:            code,
		OccurrenceCount: len(group),
	}
	if len(group) == 0 {
		ctx.TemporalPattern = temporalPattern(nil)
		return ctx
	}

	ordered := append([]model.Transaction(nil), group...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	amounts := make([]float64, len(ordered))
	variations := make(map[string]bool)
	for i, txn := range ordered {
		amounts[i] = txn.Amount
		if v := txn.VariationText(); v != "" {
			variations[v] = true
		}
	}

	ctx.RawVariations = sortedKeys(variations)
	ctx.TotalAmount = sumAmounts(amounts)
	ctx.AmountStats = amountStats(amounts)
	ctx.TemporalPattern = temporalPattern(ordered)
	ctx.CodeStructure = codeStructure(code, ctx.RawVariations, e.normalizer.Locale())
	ctx.CoOccurringCodes = coOccurring(code, ordered, index)
	ctx.DateRange = dateRange(ordered)

	for _, txn := range ordered {
		if len(ctx.SampleTransactionIDs) == maxSamples {
			break
		}
		ctx.SampleTransactionIDs = append(ctx.SampleTransactionIDs, txn.ID)
	}

	return ctx
}

func coOccurring(code string, group []model.Transaction, index dateIndex) []model.CoOccurrence {
	seen := make(map[string]bool)
	counts := make(map[string]int)
	for _, txn := range group {
		key := dateKey(txn.Date)
		if seen[key] {
			continue
		}
		seen[key] = true
		for other, n := range index[key] {
			if other != code {
				counts[other] += n
			}
		}
	}

	out := make([]model.CoOccurrence, 0, len(counts))
	for c, n := range counts {
		out = append(out, model.CoOccurrence{Code: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > maxCoOccurring {
		out = out[:maxCoOccurring]
	}
	return out
}

func dateRange(ordered []model.Transaction) model.DateRange {
	first := ordered[0].Date
	last := ordered[len(ordered)-1].Date
	return model.DateRange{
		First:    first,
		Last:     last,
		SpanDays: int(startOfDay(last).Sub(startOfDay(first)).Hours() / 24),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
