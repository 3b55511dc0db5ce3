package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Action is a human review action on a pending discovery.
type Action string

// Review actions.
const (
	ActionConfirm Action = "confirm"
	ActionCorrect Action = "correct"
	ActionReject  Action = "reject"
)

// Verdict is one review decision with its optional correction and notes.
type Verdict struct {
	Action Action
	Name   string
	Notes  string
}

// Validate checks the verdict is complete.
func (v Verdict) Validate() error {
	switch v.Action {
	case ActionConfirm, ActionReject:
		return nil
	case ActionCorrect:
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: a corrected name is required", common.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown review action %q", common.ErrInvalidInput, v.Action)
	}
}

// StatusUpdate maps the verdict onto its terminal status transition.
func (v Verdict) StatusUpdate() model.StatusUpdate {
	u := model.StatusUpdate{}
	if notes := strings.TrimSpace(v.Notes); notes != "" {
		u.Notes = &notes
	}
	switch v.Action {
	case ActionConfirm:
		u.Status = model.StatusConfirmed
	case ActionCorrect:
		u.Status = model.StatusCorrected
		name := strings.TrimSpace(v.Name)
		u.ValidatedName = &name
	case ActionReject:
		u.Status = model.StatusRejected
	}
	return u
}

// Record builds the single learning record a verdict appends.
func (v Verdict) Record(d *model.MerchantDiscovery, now time.Time) (*model.DiscoveryLearning, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil discovery", common.ErrInvalidInput)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	rec := &model.DiscoveryLearning{
		PatternSignature: PatternSignature(d.ContextSnapshot),
		OriginalCode:     d.RawCode,
		ContextSummary:   ContextSummary(d.ContextSnapshot),
		AIInference:      d.FinalInference,
		AIConfidence:     d.Confidence,
		ContextFeatures:  Features(d.ContextSnapshot),
		CreatedAt:        now,
	}

	switch v.Action {
	case ActionConfirm:
		rec.WasCorrect = true
	case ActionCorrect:
		name := strings.TrimSpace(v.Name)
		errType := model.ErrorPartiallyCorrect
		rec.UserCorrection = &name
		rec.ErrorType = &errType
	case ActionReject:
		errType := model.ErrorCompletelyWrong
		rec.ErrorType = &errType
	}
	return rec, nil
}
