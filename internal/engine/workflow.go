package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/inference"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

// DefaultReinferThreshold is the confidence below which an unconfirmed
// discovery is sent back through inference.
const DefaultReinferThreshold = 0.7

// Config holds configuration options for the discovery workflow.
type Config struct {
	Logger           *slog.Logger
	Metrics          Metrics
	Now              func() time.Time
	ReinferThreshold float64
}

// Workflow runs discovery: analyze all transactions, infer the codes that
// need it and save each new inference as a pending discovery.
type Workflow struct {
	storage          service.Storage
	extractor        *analysis.Extractor
	inferrer         Inferrer
	logger           *slog.Logger
	metrics          Metrics
	now              func() time.Time
	stage            model.Stage
	reinferThreshold float64
	mu               sync.Mutex
}

// NewWorkflow creates a workflow with the given dependencies.
func NewWorkflow(storage service.Storage, extractor *analysis.Extractor, inferrer Inferrer, cfg Config) *Workflow {
	if extractor == nil {
		extractor = analysis.NewExtractor(nil)
	}
	if cfg.ReinferThreshold <= 0 {
		cfg.ReinferThreshold = DefaultReinferThreshold
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Workflow{
		storage:          storage,
		extractor:        extractor,
		inferrer:         inferrer,
		logger:           common.LoggerOrDefault(cfg.Logger),
		metrics:          cfg.Metrics,
		now:              cfg.Now,
		stage:            model.StageIdle,
		reinferThreshold: cfg.ReinferThreshold,
	}
}

// Stage returns the stage of the current or most recent run.
func (w *Workflow) Stage() model.Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

type run struct {
	w        *Workflow
	progress ProgressFunc
	result   *model.DiscoveryResult
}

func (r *run) enter(stage model.Stage, current, total int, msg string) {
	r.w.mu.Lock()
	r.w.stage = stage
	r.w.mu.Unlock()
	r.result.State = string(stage)

	if r.progress != nil {
		r.progress(model.Progress{Stage: stage, Current: current, Total: total, Message: msg})
	}
}

func (r *run) fail(err error) (*model.DiscoveryResult, error) {
	r.result.Message = err.Error()
	r.enter(model.StageError, r.result.DiscoveriesCount, r.result.TotalCodes, err.Error())
	return r.result, err
}

// Run executes one discovery run. On failure the returned result is still
// populated: it reports the error state and the discoveries saved before the
// failure, which remain persisted.
func (w *Workflow) Run(ctx context.Context, progress ProgressFunc) (*model.DiscoveryResult, error) {
	start := w.now()
	r := &run{w: w, progress: progress, result: &model.DiscoveryResult{DiscoveryIDs: []string{}}}

	result, err := w.run(ctx, r)
	w.metrics.RunFinished(model.Stage(result.State), result.DiscoveriesCount, w.now().Sub(start))
	if err != nil {
		w.logger.Error("Discovery run failed", "error", err, "saved", result.DiscoveriesCount)
		return result, err
	}
	w.logger.Info("Discovery run complete",
		"codes", result.TotalCodes,
		"discoveries", result.DiscoveriesCount)
	return result, nil
}

func (w *Workflow) run(ctx context.Context, r *run) (*model.DiscoveryResult, error) {
	r.enter(model.StageAnalyzing, 0, 0, "Loading transactions")

	txns, err := w.storage.GetAllTransactions(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("failed to load transactions: %w", err))
	}
	if len(txns) == 0 {
		return r.fail(common.NewUserError("Import transactions before running discovery", common.ErrNoTransactions))
	}

	contexts := w.extractor.AnalyzeAll(txns)
	r.result.TotalCodes = len(contexts)
	r.enter(model.StageAnalyzing, 0, len(contexts),
		fmt.Sprintf("Grouped %d transactions into %d merchant codes", len(txns), len(contexts)))

	stored, err := w.storage.GetDiscoveries(ctx, service.DiscoveryFilter{})
	if err != nil {
		return r.fail(fmt.Errorf("failed to load existing discoveries: %w", err))
	}
	existing := inference.ExistingFromDiscoveries(stored)
	pending := inference.FilterNeedingInference(analysis.SortedContexts(contexts), existing, w.reinferThreshold)

	w.logger.Info("Analyzed transactions",
		"transactions", len(txns),
		"codes", len(contexts),
		"known", len(existing),
		"needing_inference", len(pending))

	if len(pending) == 0 {
		r.enter(model.StageComplete, 0, 0, "All merchant codes are already known")
		return r.result, nil
	}

	history, err := w.storage.GetAllLearning(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("failed to load learning history: %w", err))
	}

	r.enter(model.StageInferring, 0, len(pending), fmt.Sprintf("Inferring %d merchant codes", len(pending)))
	inferences := w.inferrer.InferBatch(ctx, pending, history, func(ev inference.Event) {
		if ev.Type != inference.EventProgress || r.progress == nil {
			return
		}
		r.progress(model.Progress{
			Stage:   model.StageInferring,
			Code:    ev.Code,
			Current: ev.Current,
			Total:   ev.Total,
			Message: ev.Message,
		})
	})
	if err := ctx.Err(); err != nil {
		return r.fail(fmt.Errorf("discovery canceled: %w", err))
	}

	r.enter(model.StageSaving, 0, len(inferences), fmt.Sprintf("Saving %d inferences", len(inferences)))
	for i := range inferences {
		inf := &inferences[i]
		if _, known := existing[inf.Code]; known {
			w.logger.Debug("Discovery already exists, keeping stored record", "code", inf.Code)
			continue
		}

		tctx, ok := contexts[inf.Code]
		if !ok {
			w.logger.Warn("Inference for unknown code", "code", inf.Code)
			continue
		}

		d := w.newDiscovery(inf, tctx)
		if err := w.storage.AddMerchantDiscovery(ctx, d); err != nil {
			if errors.Is(err, common.ErrDuplicateEntry) {
				w.logger.Debug("Discovery created concurrently, skipping", "code", inf.Code)
				continue
			}
			return r.fail(fmt.Errorf("failed to save discovery for %s: %w", inf.Code, err))
		}

		r.result.DiscoveryIDs = append(r.result.DiscoveryIDs, d.ID)
		r.result.DiscoveriesCount++
		if r.progress != nil {
			r.progress(model.Progress{
				Stage:   model.StageSaving,
				Code:    inf.Code,
				Current: i + 1,
				Total:   len(inferences),
				Message: fmt.Sprintf("Saved %s as %s", inf.Code, inf.Name),
			})
		}
	}

	r.enter(model.StageComplete, r.result.DiscoveriesCount, r.result.TotalCodes,
		fmt.Sprintf("Created %d new discoveries", r.result.DiscoveriesCount))
	return r.result, nil
}

func (w *Workflow) newDiscovery(inf *model.MerchantInference, tctx *model.TransactionContext) *model.MerchantDiscovery {
	return &model.MerchantDiscovery{
		RawCode:          inf.Code,
		ContextSnapshot:  *tctx,
		Reasoning:        inf.Reasoning,
		FinalInference:   inf.Name,
		Confidence:       inf.Confidence,
		MerchantType:     inf.Type,
		ReasoningSummary: inf.Summary,
		UsedWebSearch:    inf.UsedWebSearch,
		Status:           model.StatusPending,
		ImpactScore:      analysis.ImpactScore(*tctx, inf.Confidence),
		CreatedAt:        w.now().UTC(),
	}
}
