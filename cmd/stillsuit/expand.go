package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/recurrence"
	"github.com/Veraticus/stillsuit/internal/service"
)

func expandCmd() *cobra.Command {
	var (
		from, to  string
		datesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Show every transaction in a date range, including recurring occurrences",
		Long: `Expand recurring templates into their concrete occurrences between
--from and --to (inclusive) and list them next to the one-off rows.

With --dates-only, print just the occurrence dates of each template.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start, err := parseDay(from)
			if err != nil {
				return err
			}
			end, err := parseDay(to)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()

			if datesOnly {
				templates, err := store.ListTransactions(ctx, service.TransactionFilter{RecurringOnly: true})
				if err != nil {
					return err
				}
				for _, t := range templates {
					fmt.Fprintln(out, cli.TitleStyle.UnsetMargins().Render(t.Merchant+" "+formatMoney(t.Amount, t.Currency)))
					for _, d := range recurrence.Occurrences(t, start, end) {
						fmt.Fprintf(out, "  %s  %s\n", d.Format(dayLayout), model.NewOccurrenceID(t.ID, d))
					}
				}
				return nil
			}

			all, err := store.ListTransactions(ctx, service.TransactionFilter{})
			if err != nil {
				return err
			}
			expanded := recurrence.ExpandForRange(all, start, end)
			if len(expanded) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No transactions in range."))
				return nil
			}
			fmt.Fprintln(out, cli.RenderTable(
				[]string{"DATE", "TYPE", "AMOUNT", "CATEGORY", "MERCHANT", "REPEAT", "ID"},
				transactionRows(expanded)))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day YYYY-MM-DD")
	cmd.Flags().BoolVar(&datesOnly, "dates-only", false, "Print occurrence dates per template")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
