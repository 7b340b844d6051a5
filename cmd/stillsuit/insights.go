package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/insights"
)

func insightsCmd() *cobra.Command {
	var (
		expand   bool
		asJSON   bool
		asOf     string
		currency string
	)

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Analyze spending: month overview, spikes, subscriptions and budget projection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			now := time.Now()
			if asOf != "" {
				d, err := parseDay(asOf)
				if err != nil {
					return err
				}
				now = d.Add(12 * time.Hour)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var opts []insights.Option
			if expand {
				opts = append(opts, insights.WithRecurringExpansion())
			}
			result, err := insights.NewEngine(store, opts...).Generate(ctx, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			renderInsights(out, result, currency)
			return nil
		},
	}

	cmd.Flags().BoolVar(&expand, "expand", false, "Count recurring occurrences instead of stored templates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Compute as of this day YYYY-MM-DD (default: now)")
	cmd.Flags().StringVar(&currency, "currency", "EUR", "Currency label for totals")
	return cmd
}

func renderInsights(w io.Writer, r *insights.Result, currency string) {
	ov := r.Overview
	var b strings.Builder
	fmt.Fprintf(&b, "This month:  %s\n", formatMoney(ov.CurrentMonthTotal, currency))
	fmt.Fprintf(&b, "Last month:  %s\n", formatMoney(ov.PreviousMonthTotal, currency))
	fmt.Fprintf(&b, "Change:      %s\n", formatPercent(ov.PercentageChange))
	if len(ov.TopCategories) > 0 {
		b.WriteString("\nTop categories:\n")
		for i, c := range ov.TopCategories {
			fmt.Fprintf(&b, "  %d. %s  %s\n", i+1, c.Name, formatMoney(c.Total, currency))
		}
	}
	fmt.Fprintln(w, cli.RenderBox(cli.ChartIcon+" Overview", strings.TrimRight(b.String(), "\n")))

	if spikes := r.Diagnostics.Spikes; len(spikes) > 0 {
		rows := make([][]string, 0, len(spikes))
		for _, s := range spikes {
			rows = append(rows, []string{
				s.Date.Format(dayLayout),
				s.CategoryName,
				formatMoney(s.Amount, currency),
				formatMoney(s.CategoryMean, currency),
			})
		}
		fmt.Fprintln(w, cli.TitleStyle.Render("Spikes"))
		fmt.Fprintln(w, cli.RenderTable([]string{"DATE", "CATEGORY", "AMOUNT", "MEAN"}, rows))
	}

	if subs := r.Diagnostics.Subscriptions; len(subs) > 0 {
		rows := make([][]string, 0, len(subs))
		for _, s := range subs {
			rows = append(rows, []string{s.Merchant, formatMoney(s.Amount, s.Currency)})
		}
		fmt.Fprintln(w, cli.TitleStyle.Render("Subscriptions"))
		fmt.Fprintln(w, cli.RenderTable([]string{"MERCHANT", "AMOUNT"}, rows))
	}

	p := r.Predictions
	fmt.Fprintln(w, cli.TitleStyle.Render("Projection"))
	fmt.Fprintf(w, "Day %d of %d, %s per day, %s expected by month end\n",
		p.DaysElapsed, p.DaysInMonth,
		formatMoney(p.DailyRate, currency),
		formatMoney(p.ExpectedMonthEndSpend, currency))
	for _, o := range p.Overruns {
		scope := "overall"
		if o.CategoryID != nil {
			scope = *o.CategoryID
		}
		fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("Budget %s: %s over %s limit",
			scope, formatMoney(o.Excess, currency), formatMoney(o.Limit, currency))))
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		for _, rec := range r.Recommendations {
			fmt.Fprintln(w, cli.FormatInfo(rec))
		}
	}
}
