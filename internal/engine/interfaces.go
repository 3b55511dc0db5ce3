// Package engine orchestrates discovery runs and human review of their results.
package engine

import (
	"context"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/inference"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Inferrer produces merchant inferences for a batch of contexts.
// *inference.Engine satisfies it.
type Inferrer interface {
	InferBatch(ctx context.Context, contexts []*model.TransactionContext, history []model.DiscoveryLearning, onEvent func(inference.Event)) []model.MerchantInference
}

// ProgressFunc receives workflow progress. It is called from the goroutine
// running the workflow.
type ProgressFunc func(model.Progress)

// Metrics observes finished runs and review actions.
type Metrics interface {
	RunFinished(stage model.Stage, created int, elapsed time.Duration)
	ValidationRecorded(action string)
}

type nopMetrics struct{}

func (nopMetrics) RunFinished(model.Stage, int, time.Duration) {}
func (nopMetrics) ValidationRecorded(string)                   {}
