package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mp3fbf/finance-analyzer/internal/analysis"
	"github.com/mp3fbf/finance-analyzer/internal/cli"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively confirm, correct or reject pending discoveries",
		Long: `Walk through pending discoveries, highest impact first. Every verdict is
stored as learning and shapes future inferences for similar codes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx := interrupts.HandleInterrupts(cmd.Context(), "Review", "Recorded verdicts are saved.")

			a, err := newReviewApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := cli.NewReviewer(a.validator, cmd.InOrStdin(), cmd.OutOrStdout(), limit).Review(ctx)
			if err != nil && !interrupts.WasInterrupted() {
				return err
			}
			if stats.Total() == 0 && stats.Skipped == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing to review"))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "Stop after this many discoveries (0 = all)")
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discoveries by impact score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := newReviewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			discoveries, err := a.storage.GetDiscoveries(cmd.Context(), service.DiscoveryFilter{
				Status: model.DiscoveryStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if len(discoveries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No discoveries found"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.DiscoveryTable(discoveries))
			return nil
		},
	}
	cmd.Flags().String("status", string(model.StatusPending), "Filter by status (pending, confirmed, corrected, rejected; empty for all)")
	cmd.Flags().Int("limit", 20, "Maximum rows (0 = all)")
	return cmd
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <discovery-id>",
		Short: "Confirm a pending discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			return applyVerdict(cmd, func(a *app) (*model.MerchantDiscovery, error) {
				return a.validator.Confirm(cmd.Context(), args[0], notes)
			})
		},
	}
	cmd.Flags().String("notes", "", "Optional notes")
	return cmd
}

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <discovery-id> <merchant name>",
		Short: "Correct the merchant name of a pending discovery",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			return applyVerdict(cmd, func(a *app) (*model.MerchantDiscovery, error) {
				return a.validator.Correct(cmd.Context(), args[0], args[1], notes)
			})
		},
	}
	cmd.Flags().String("notes", "", "Optional notes")
	return cmd
}

func rejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <discovery-id>",
		Short: "Reject a pending discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			return applyVerdict(cmd, func(a *app) (*model.MerchantDiscovery, error) {
				return a.validator.Reject(cmd.Context(), args[0], notes)
			})
		},
	}
	cmd.Flags().String("notes", "", "Why the inference is wrong")
	return cmd
}

func applyVerdict(cmd *cobra.Command, apply func(*app) (*model.MerchantDiscovery, error)) error {
	a, err := newReviewApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	d, err := apply(a)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s → %s (%s)", d.RawCode, d.ResolvedName(), d.Status)))
	return nil
}

func learningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learning",
		Short: "List recorded review verdicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newReviewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			records, err := a.storage.GetAllLearning(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No learning recorded yet"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.LearningTable(records))
			return nil
		},
	}
}

func contextsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "Show merchant codes ranked by impact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			ctx := cmd.Context()

			a, err := newReviewApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			txns, err := a.storage.GetAllTransactions(ctx)
			if err != nil {
				return err
			}
			discoveries, err := a.storage.GetDiscoveries(ctx, service.DiscoveryFilter{})
			if err != nil {
				return err
			}
			confidence := make(map[string]float64, len(discoveries))
			for _, d := range discoveries {
				confidence[d.RawCode] = d.Confidence
			}

			ranked := analysis.RankByImpact(a.extractor.AnalyzeAll(txns), confidence)
			if limit > 0 && len(ranked) > limit {
				ranked = ranked[:limit]
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.ContextTable(ranked))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum rows (0 = all)")
	return cmd
}
