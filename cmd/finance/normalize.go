package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mp3fbf/finance-analyzer/internal/cli"
	"github.com/mp3fbf/finance-analyzer/internal/normalize"
)

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <description>...",
		Short: "Show the merchant codes a description normalizes to",
		Example: `  finance normalize "UBER *TRIP HELP.UBER.COM"
  finance normalize --trace "PADARIA PAO QUENTE CAMPINAS 0423"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, _ := cmd.Flags().GetBool("trace")
			n := normalize.New(appConfig.Locale())

			for _, raw := range args {
				fmt.Fprintln(cmd.OutOrStdout(), cli.BoldStyle.Render(strconv.Quote(raw)))
				fmt.Fprintf(cmd.OutOrStdout(), "  conservative: %s\n", n.Conservative(raw))
				code := n.Aggressive(raw)
				fmt.Fprintf(cmd.OutOrStdout(), "  aggressive:   %s\n", cli.SuccessStyle.Render(code))
				fmt.Fprintf(cmd.OutOrStdout(), "  display:      %s\n", normalize.DisplayName(code))

				if trace {
					for _, step := range n.Trace(raw) {
						if step.Changed() {
							fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render(fmt.Sprintf("    %-28s %s → %s", step.Rule, step.Before, step.After)))
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("trace", false, "Show each rule that changed the description")
	return cmd
}
