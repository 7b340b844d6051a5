package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/config"
	"github.com/Veraticus/stillsuit/internal/insights"
	"github.com/Veraticus/stillsuit/internal/recurrence"
	"github.com/Veraticus/stillsuit/internal/service"
	"github.com/Veraticus/stillsuit/internal/sheets"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a date range locally or export it to Google Sheets",
	}
	cmd.AddCommand(reportSummaryCmd())
	cmd.AddCommand(reportSheetsCmd())
	return cmd
}

type reportFlags struct {
	from, to        string
	withInsights    bool
	spreadsheetID   string
	spreadsheetName string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "First day YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day YYYY-MM-DD")
	cmd.Flags().BoolVar(&f.withInsights, "insights", false, "Include recommendations computed as of --to")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

// buildReport loads the range with recurring occurrences expanded.
func buildReport(ctx context.Context, f *reportFlags) (*sheets.Report, error) {
	start, err := parseDay(f.from)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(f.to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, common.NewUserError("--to is before --from", nil)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	all, err := store.ListTransactions(ctx, service.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	categories, err := store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	var result *insights.Result
	if f.withInsights {
		result, err = insights.NewEngine(store, insights.WithRecurringExpansion()).Generate(ctx, end.Add(12*time.Hour))
		if err != nil {
			return nil, err
		}
	}

	return sheets.BuildReport(start, end, recurrence.ExpandForRange(all, start, end), categories, result), nil
}

func reportSummaryCmd() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print income, expenses and the expense breakdown for a date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := buildReport(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func renderReport(w io.Writer, r *sheets.Report) {
	summary := fmt.Sprintf("Income:   %s\nExpenses: %s\nNet:      %s\nRows:     %d",
		r.TotalIncome.StringFixed(2)+" "+r.Currency,
		r.TotalExpenses.StringFixed(2)+" "+r.Currency,
		r.Net().StringFixed(2)+" "+r.Currency,
		len(r.Transactions))
	title := fmt.Sprintf("%s %s to %s", cli.ChartIcon, r.Start.Format(dayLayout), r.End.Format(dayLayout))
	fmt.Fprintln(w, cli.RenderBox(title, summary))

	if len(r.Categories) > 0 {
		rows := make([][]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			rows = append(rows, []string{c.Name, strconv.Itoa(c.Count), c.Amount.StringFixed(2)})
		}
		fmt.Fprintln(w, cli.RenderTable([]string{"CATEGORY", "COUNT", "AMOUNT"}, rows))
	}

	for _, rec := range r.Recommendations {
		fmt.Fprintln(w, cli.FormatInfo(rec))
	}
}

func reportSheetsCmd() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Export a date range to a Google spreadsheet",
		Long: `Write the summary, expense breakdown and every transaction of the
range to a Google spreadsheet. Without report.sheets.spreadsheet_id a new
spreadsheet is created on each run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadSheetsConfig()
			if err != nil {
				if errors.Is(err, common.ErrMissingConfig) {
					return common.NewUserError("no Google credentials configured; run 'stillsuit auth google' or set report.sheets.service_account_path", err)
				}
				return err
			}
			if flags.spreadsheetID != "" {
				cfg.SpreadsheetID = flags.spreadsheetID
			}
			if flags.spreadsheetName != "" {
				cfg.SpreadsheetName = flags.spreadsheetName
			}

			report, err := buildReport(ctx, &flags)
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			id, err := writer.Write(ctx, report)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Exported %s to https://docs.google.com/spreadsheets/d/%s",
				plural(len(report.Transactions), "transaction"), id)))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.spreadsheetID, "spreadsheet-id", "", "Write into this spreadsheet instead of the configured one")
	cmd.Flags().StringVar(&flags.spreadsheetName, "name", "", "Title for a newly created spreadsheet")
	return cmd
}
