package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/model"
)

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "budget",
		Aliases: []string{"budgets"},
		Short:   "Manage budgets",
	}
	cmd.AddCommand(addBudgetCmd())
	cmd.AddCommand(listBudgetsCmd())
	return cmd
}

func addBudgetCmd() *cobra.Command {
	var (
		category, currency, period string
		startDay, alertAt          int
	)

	cmd := &cobra.Command{
		Use:   "add <limit>",
		Short: "Create a budget for a category, or overall without --category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit, err := strconv.ParseFloat(args[0], 64)
			if err != nil || limit <= 0 {
				return common.NewUserError(fmt.Sprintf("invalid limit %q", args[0]), err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			b := model.Budget{
				ID:                    uuid.NewString(),
				CategoryID:            model.StringPtr(category),
				LimitAmount:           limit,
				Currency:              currency,
				Period:                model.BudgetPeriod(period),
				PeriodStartDay:        startDay,
				AlertThresholdPercent: alertAt,
				IsActive:              true,
			}
			if err := store.SaveBudget(ctx, &b); err != nil {
				return fmt.Errorf("failed to save budget: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s budget %s (%s)",
				b.Period, formatMoney(b.LimitAmount, b.Currency), b.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category ID (default: overall)")
	cmd.Flags().StringVar(&currency, "currency", "EUR", "ISO currency code")
	cmd.Flags().StringVar(&period, "period", string(model.PeriodMonthly), "monthly, weekly or custom")
	cmd.Flags().IntVar(&startDay, "start-day", 1, "Day of month the period starts")
	cmd.Flags().IntVar(&alertAt, "alert-at", 80, "Alert threshold in percent")
	return cmd
}

func listBudgetsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budgets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			budgets, err := store.ListBudgets(ctx, !all)
			if err != nil {
				return err
			}
			if len(budgets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No budgets found."))
				return nil
			}

			rows := make([][]string, 0, len(budgets))
			for _, b := range budgets {
				scope := "overall"
				if !b.IsOverall() {
					scope = *b.CategoryID
				}
				rows = append(rows, []string{
					scope,
					string(b.Period),
					formatMoney(b.LimitAmount, b.Currency),
					strconv.FormatBool(b.IsActive),
					b.ID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
				[]string{"SCOPE", "PERIOD", "LIMIT", "ACTIVE", "ID"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include inactive budgets")
	return cmd
}
