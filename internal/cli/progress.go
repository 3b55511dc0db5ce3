package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// ProgressReporter renders workflow progress as stage lines plus a progress
// bar during inference.
type ProgressReporter struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	stage  model.Stage
	mu     sync.Mutex
}

// NewProgressReporter creates a reporter writing to writer.
func NewProgressReporter(writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &ProgressReporter{writer: writer, stage: model.StageIdle}
}

// Report consumes one progress update. It satisfies engine.ProgressFunc.
func (r *ProgressReporter) Report(p model.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Stage != r.stage {
		r.finishBar()
		r.stage = p.Stage
		r.printStage(p)
	}

	if p.Stage == model.StageInferring && p.Total > 0 {
		if r.bar == nil {
			r.bar = r.newBar(p.Total)
		}
		if p.Code != "" {
			r.bar.Describe(fmt.Sprintf("[cyan]Inferring[reset] %s", p.Code))
		}
		if err := r.bar.Set(p.Current); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

// Finish closes any open progress bar.
func (r *ProgressReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishBar()
}

func (r *ProgressReporter) printStage(p model.Progress) {
	var line string
	switch p.Stage {
	case model.StageComplete:
		line = FormatSuccess(p.Message)
	case model.StageError:
		line = FormatError(p.Message)
	default:
		line = FormatInfo(p.Message)
	}
	if _, err := fmt.Fprintln(r.writer, line); err != nil {
		slog.Warn("Failed to write progress", "error", err)
	}
}

func (r *ProgressReporter) finishBar() {
	if r.bar == nil {
		return
	}
	if err := r.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	r.bar = nil
}

func (r *ProgressReporter) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Inferring merchants...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(r.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
