package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mp3fbf/finance-analyzer/internal/cli"
	"github.com/mp3fbf/finance-analyzer/internal/model"
	"github.com/mp3fbf/finance-analyzer/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ofx|dir>...",
		Short: "Import OFX/QFX statements",
		Long: `Import bank and credit card statements in OFX/QFX format.

Directories are scanned for .ofx and .qfx files. Transactions already
imported are skipped, so re-importing overlapping statements is safe.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}
	cmd.Flags().Bool("dry-run", false, "Parse files without saving")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := statementFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .ofx or .qfx files found")
	}

	parser := ofx.NewParser(slog.Default())
	var all []model.Transaction
	for _, path := range files {
		txns, err := parseStatement(cmd, parser, path)
		if err != nil {
			return err
		}
		all = append(all, txns...)
	}

	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Parsed %d transactions from %d files (dry run)", len(all), len(files))))
		return nil
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	saved, err := store.SaveTransactions(ctx, all)
	if err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d already present)", saved, len(all)-saved)))
	return nil
}

func parseStatement(cmd *cobra.Command, parser *ofx.Parser, path string) ([]model.Transaction, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied statement path
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	txns, err := parser.ParseFile(cmd.Context(), f)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%s: %d transactions", filepath.Base(path), len(txns))))
	return txns, nil
}

// statementFiles expands directories into the statement files they contain.
func statementFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".ofx" || ext == ".qfx") {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	return files, nil
}
