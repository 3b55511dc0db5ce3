package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// ReviewService is the review surface the interactive reviewer drives.
// *engine.Validator satisfies it.
type ReviewService interface {
	Pending(ctx context.Context) ([]model.MerchantDiscovery, error)
	Confirm(ctx context.Context, id, notes string) (*model.MerchantDiscovery, error)
	Correct(ctx context.Context, id, name, notes string) (*model.MerchantDiscovery, error)
	Reject(ctx context.Context, id, notes string) (*model.MerchantDiscovery, error)
}

// ReviewStats counts what one review session did.
type ReviewStats struct {
	Confirmed int
	Corrected int
	Rejected  int
	Skipped   int
}

// Total returns the number of discoveries a verdict was recorded for.
func (s ReviewStats) Total() int {
	return s.Confirmed + s.Corrected + s.Rejected
}

// Reviewer walks pending discoveries, highest impact first, and records the
// user's verdicts.
type Reviewer struct {
	service ReviewService
	reader  *NonBlockingReader
	writer  io.Writer
	limit   int
}

// NewReviewer creates an interactive reviewer. limit caps how many
// discoveries are shown; zero means all.
func NewReviewer(service ReviewService, reader io.Reader, writer io.Writer, limit int) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Reviewer{
		service: service,
		reader:  NewNonBlockingReader(reader),
		writer:  writer,
		limit:   limit,
	}
}

// Review runs the session until the queue is empty, the limit is reached,
// the user quits or input ends.
func (r *Reviewer) Review(ctx context.Context) (ReviewStats, error) {
	var stats ReviewStats
	skipped := make(map[string]bool)

	for r.limit == 0 || stats.Total()+stats.Skipped < r.limit {
		d, remaining, err := r.nextUnskipped(ctx, skipped)
		if err != nil {
			return stats, err
		}
		if d == nil {
			break
		}

		r.printf("%s\n%s\n", SubtleStyle.Render(fmt.Sprintf("%d pending", remaining)), FormatDiscovery(d))

		quit, err := r.reviewOne(ctx, d, &stats, skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return stats, err
		}
		if quit {
			break
		}
	}

	r.printSummary(stats)
	return stats, nil
}

func (r *Reviewer) nextUnskipped(ctx context.Context, skipped map[string]bool) (*model.MerchantDiscovery, int, error) {
	pending, err := r.service.Pending(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load pending discoveries: %w", err)
	}
	for i := range pending {
		if !skipped[pending[i].ID] {
			return &pending[i], len(pending), nil
		}
	}
	return nil, len(pending), nil
}

func (r *Reviewer) reviewOne(ctx context.Context, d *model.MerchantDiscovery, stats *ReviewStats, skipped map[string]bool) (bool, error) {
	for {
		r.printf("  [C] Confirm %s\n  [X] Correct the name\n  [R] Reject\n  [S] Skip\n  [Q] Quit\n",
			SuccessStyle.Render(d.FinalInference))
		choice, err := r.ask(ctx, "Choice")
		if err != nil {
			return false, err
		}

		switch strings.ToLower(choice) {
		case "c":
			notes, err := r.ask(ctx, "Notes (optional)")
			if err != nil {
				return false, err
			}
			if _, err := r.service.Confirm(ctx, d.ID, notes); err != nil {
				return false, r.reviewError(err)
			}
			stats.Confirmed++
			r.printf("%s\n\n", FormatSuccess(fmt.Sprintf("%s confirmed as %s", d.RawCode, d.FinalInference)))
			return false, nil

		case "x":
			name, err := r.ask(ctx, "Correct merchant name")
			if err != nil {
				return false, err
			}
			if name == "" {
				r.printf("%s\n", FormatWarning("A name is required to correct a discovery"))
				continue
			}
			notes, err := r.ask(ctx, "Notes (optional)")
			if err != nil {
				return false, err
			}
			if _, err := r.service.Correct(ctx, d.ID, name, notes); err != nil {
				return false, r.reviewError(err)
			}
			stats.Corrected++
			r.printf("%s\n\n", FormatSuccess(fmt.Sprintf("%s corrected to %s", d.RawCode, name)))
			return false, nil

		case "r":
			notes, err := r.ask(ctx, "Why is it wrong? (optional)")
			if err != nil {
				return false, err
			}
			if _, err := r.service.Reject(ctx, d.ID, notes); err != nil {
				return false, r.reviewError(err)
			}
			stats.Rejected++
			r.printf("%s\n\n", FormatWarning(d.RawCode+" rejected"))
			return false, nil

		case "s":
			skipped[d.ID] = true
			stats.Skipped++
			return false, nil

		case "q":
			return true, nil

		default:
			r.printf("%s\n", FormatWarning(fmt.Sprintf("Unknown choice %q", choice)))
		}
	}
}

// reviewError keeps the session alive when another reviewer got there first.
func (r *Reviewer) reviewError(err error) error {
	if errors.Is(err, common.ErrAlreadyValidated) || errors.Is(err, common.ErrNotFound) {
		r.printf("%s\n", FormatWarning(err.Error()))
		return nil
	}
	return err
}

func (r *Reviewer) ask(ctx context.Context, prompt string) (string, error) {
	r.printf("%s", FormatPrompt(prompt))
	return r.reader.ReadLine(ctx)
}

func (r *Reviewer) printSummary(stats ReviewStats) {
	summary := fmt.Sprintf("  • Confirmed: %d\n  • Corrected: %d\n  • Rejected: %d\n  • Skipped: %d",
		stats.Confirmed, stats.Corrected, stats.Rejected, stats.Skipped)
	r.printf("%s\n", RenderBox("Review Complete", summary))
}

func (r *Reviewer) printf(format string, args ...any) {
	// Terminal writes are best effort.
	_, _ = fmt.Fprintf(r.writer, format, args...)
}
