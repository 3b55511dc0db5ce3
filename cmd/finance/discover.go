package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/cli"
	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/inference"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Infer merchants for codes without a confident discovery",
		Long: `Analyze every imported transaction, group them by merchant code and ask the
reasoning service who is behind each code that has no discovery yet (or only
an unconfirmed low-confidence one). New inferences are saved as pending
discoveries for review.`,
		RunE: runDiscover,
	}
	cmd.Flags().Bool("stream", false, "Print progress events as JSON lines instead of a progress bar")
	cmd.Flags().Bool("dry-run", false, "Infer and print results without saving discoveries")
	return cmd
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	stream, _ := cmd.Flags().GetBool("stream")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Discovery",
		"Saved discoveries are kept. Run `finance discover` again to continue.")

	a, err := newDiscoveryApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if dryRun {
		return runDryDiscover(ctx, cmd, a)
	}

	var progress func(model.Progress)
	var reporter *cli.ProgressReporter
	if stream {
		enc := json.NewEncoder(cmd.OutOrStdout())
		progress = func(p model.Progress) {
			if err := enc.Encode(p); err != nil {
				slog.Warn("Failed to write progress event", "error", err)
			}
		}
	} else {
		reporter = cli.NewProgressReporter(cmd.OutOrStdout())
		progress = reporter.Report
	}

	result, err := a.workflow.Run(ctx, progress)
	if reporter != nil {
		reporter.Finish()
	}
	if err != nil {
		if result != nil && result.DiscoveriesCount > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("%d discoveries were saved before the failure", result.DiscoveriesCount)))
		}
		return err
	}

	if stream {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	if result.DiscoveriesCount > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Review them with: finance review"))
	}
	return nil
}

// runDryDiscover infers the codes a run would infer and prints each result
// as it arrives. Nothing is saved.
func runDryDiscover(ctx context.Context, cmd *cobra.Command, a *app) error {
	txns, err := a.storage.GetAllTransactions(ctx)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		return common.NewUserError("Import transactions before running discovery", common.ErrNoTransactions)
	}
	discoveries, err := a.storage.GetDiscoveries(ctx, service.DiscoveryFilter{})
	if err != nil {
		return err
	}
	history, err := a.storage.GetAllLearning(ctx)
	if err != nil {
		return err
	}

	contexts := analysis.SortedContexts(a.extractor.AnalyzeAll(txns))
	pending := inference.FilterNeedingInference(contexts,
		inference.ExistingFromDiscoveries(discoveries), appConfig.Discovery.ReinferThreshold)
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%d of %d codes need inference", len(pending), len(contexts))))

	enc := json.NewEncoder(cmd.OutOrStdout())
	for ev := range a.engine.Stream(ctx, pending, history) {
		switch ev.Type {
		case inference.EventResult, inference.EventError, inference.EventComplete:
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}
