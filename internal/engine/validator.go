package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/learning"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

// Validator applies human review verdicts to pending discoveries.
type Validator struct {
	storage service.Storage
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
}

// NewValidator creates a validator. Only Logger, Metrics and Now are read from cfg.
func NewValidator(storage service.Storage, cfg Config) *Validator {
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Validator{
		storage: storage,
		logger:  common.LoggerOrDefault(cfg.Logger),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// Pending lists discoveries awaiting review, highest impact first.
func (v *Validator) Pending(ctx context.Context) ([]model.MerchantDiscovery, error) {
	return v.storage.GetDiscoveries(ctx, service.DiscoveryFilter{Status: model.StatusPending})
}

// Next returns the pending discovery with the highest impact score, or
// common.ErrNotFound when the queue is empty.
func (v *Validator) Next(ctx context.Context) (*model.MerchantDiscovery, error) {
	pending, err := v.storage.GetDiscoveries(ctx, service.DiscoveryFilter{Status: model.StatusPending, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, common.ErrNotFound
	}
	return &pending[0], nil
}

// Confirm accepts the inferred name.
func (v *Validator) Confirm(ctx context.Context, id, notes string) (*model.MerchantDiscovery, error) {
	return v.Apply(ctx, id, learning.Verdict{Action: learning.ActionConfirm, Notes: notes})
}

// Correct replaces the inferred name with name.
func (v *Validator) Correct(ctx context.Context, id, name, notes string) (*model.MerchantDiscovery, error) {
	return v.Apply(ctx, id, learning.Verdict{Action: learning.ActionCorrect, Name: name, Notes: notes})
}

// Reject marks the inference as wrong without supplying a replacement.
func (v *Validator) Reject(ctx context.Context, id, notes string) (*model.MerchantDiscovery, error) {
	return v.Apply(ctx, id, learning.Verdict{Action: learning.ActionReject, Notes: notes})
}

// Apply records a verdict: one status transition and one learning record,
// committed together. A discovery that was already reviewed fails with
// common.ErrAlreadyValidated.
func (v *Validator) Apply(ctx context.Context, id string, verdict learning.Verdict) (*model.MerchantDiscovery, error) {
	if err := verdict.Validate(); err != nil {
		return nil, err
	}

	d, err := v.storage.GetDiscoveryByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load discovery %s: %w", id, err)
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("discovery %s is %s: %w", id, d.Status, common.ErrAlreadyValidated)
	}

	rec, err := verdict.Record(d, v.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := v.storage.RecordValidation(ctx, id, verdict.StatusUpdate(), rec); err != nil {
		return nil, fmt.Errorf("failed to record %s for %s: %w", verdict.Action, d.RawCode, err)
	}

	v.metrics.ValidationRecorded(string(verdict.Action))
	v.logger.Info("Recorded review",
		"code", d.RawCode,
		"action", verdict.Action,
		"inference", d.FinalInference,
		"signature", rec.PatternSignature)

	return v.storage.GetDiscoveryByID(ctx, id)
}
