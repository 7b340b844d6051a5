package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	var (
		currency string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX files exported from your bank.

All files are parsed first and then written in a single database
transaction: either every new row is stored or none is. Rows that were
imported before are skipped.`,
		Example: `  # Import single file
  stillsuit import-ofx ~/Downloads/checking_jan.qfx

  # Import all QFX files in a directory
  stillsuit import-ofx ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			files, err := expandGlobs(args)
			if err != nil {
				return err
			}

			parser := ofx.NewParser(currency)
			progress := cli.NewProgress(out, len(files), "Parsing statements...")
			var all []model.Transaction
			for _, path := range files {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				stmt, err := parser.ParseFile(ctx, f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
				}
				slog.Debug("Parsed statement", "file", path, "transactions", len(stmt.Transactions), "accounts", stmt.Accounts)
				all = append(all, stmt.Transactions...)
				progress.Step(1)
			}
			progress.Done()

			if dryRun {
				fmt.Fprintln(out, cli.RenderTable(
					[]string{"DATE", "TYPE", "AMOUNT", "CATEGORY", "MERCHANT", "REPEAT", "ID"},
					transactionRows(all)))
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Dry run: %d transactions parsed, nothing saved", len(all))))
				return nil
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			inserted, err := store.ImportTransactions(ctx, all)
			if err != nil {
				return fmt.Errorf("import failed, nothing was saved: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions (%d already present)",
				inserted, len(all)-inserted)))
			return nil
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "EUR", "Currency for statements without CURDEF")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Preview import without saving")
	return cmd
}

// expandGlobs resolves shell-style patterns, keeping literal paths that exist.
func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}
