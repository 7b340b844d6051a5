package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Manage transactions",
	}

	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(deleteTransactionCmd())
	return cmd
}

func addTransactionCmd() *cobra.Command {
	var (
		date, category, currency, merchant, note, method, repeat string
		income                                                   bool
	)

	cmd := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record a transaction",
		Example: `  # One-off expense
  stillsuit tx add 12.50 --merchant Bakery --category food

  # Rent on the 1st of every month
  stillsuit tx add 950 --merchant Landlord --category housing --date 2025-01-01 --repeat monthly:1

  # Gym on Mondays and Thursdays
  stillsuit tx add 8 --merchant Gym --repeat weekly:mon,thu`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil || amount < 0 {
				return common.NewUserError(fmt.Sprintf("invalid amount %q", args[0]), err)
			}

			when := time.Now()
			if date != "" {
				d, err := parseDay(date)
				if err != nil {
					return err
				}
				when = d
			}

			txn := model.Transaction{
				ID:            uuid.NewString(),
				Type:          model.TypeExpense,
				Amount:        amount,
				Currency:      currency,
				Date:          when,
				CategoryID:    model.StringPtr(category),
				Merchant:      merchant,
				Note:          note,
				PaymentMethod: method,
				Source:        model.SourceManual,
			}
			if income {
				txn.Type = model.TypeIncome
			}
			if repeat != "" {
				rule, err := parseRepeat(repeat)
				if err != nil {
					return err
				}
				txn.IsRecurring = true
				txn.RecurringRule = rule
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveTransaction(ctx, &txn); err != nil {
				return fmt.Errorf("failed to save transaction: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s %s (%s)",
				txn.Type, formatMoney(txn.Amount, txn.Currency), txn.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Transaction date YYYY-MM-DD (default: now)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category ID")
	cmd.Flags().StringVar(&currency, "currency", "EUR", "ISO currency code")
	cmd.Flags().StringVarP(&merchant, "merchant", "m", "", "Merchant or payee")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note")
	cmd.Flags().StringVar(&method, "payment-method", "", "Payment method")
	cmd.Flags().StringVar(&repeat, "repeat", "", "Make this a recurring template: daily, weekly[:mon,thu], monthly[:day]")
	cmd.Flags().BoolVar(&income, "income", false, "Record income instead of an expense")
	return cmd
}

// parseRepeat parses the --repeat flag.
func parseRepeat(s string) (*model.RecurringRule, error) {
	freq, arg, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch model.Frequency(freq) {
	case model.FrequencyDaily:
		return model.Daily(), nil
	case model.FrequencyWeekly:
		var days []time.Weekday
		if arg != "" {
			for _, name := range strings.Split(arg, ",") {
				d, err := model.ParseWeekday(name)
				if err != nil {
					return nil, common.NewUserError("invalid --repeat", err)
				}
				days = append(days, d)
			}
		}
		return model.Weekly(days...), nil
	case model.FrequencyMonthly:
		day := 0
		if arg != "" {
			var err error
			if day, err = strconv.Atoi(arg); err != nil || day < 1 || day > 31 {
				return nil, common.NewUserError(fmt.Sprintf("invalid month day %q", arg), model.ErrInvalidRule)
			}
		}
		return model.Monthly(day), nil
	}
	return nil, common.NewUserError(fmt.Sprintf("unknown frequency %q", freq), model.ErrInvalidRule)
}

func listTransactionsCmd() *cobra.Command {
	var (
		from, to, category, txType string
		recurring                  bool
		limit                      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter := service.TransactionFilter{
				CategoryID:    model.StringPtr(category),
				Type:          model.TransactionType(txType),
				RecurringOnly: recurring,
				Limit:         limit,
			}
			if from != "" {
				d, err := parseDay(from)
				if err != nil {
					return err
				}
				filter.StartDate = &d
			}
			if to != "" {
				d, err := parseDay(to)
				if err != nil {
					return err
				}
				filter.EndDate = &d
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txs, err := store.ListTransactions(ctx, filter)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No transactions found."))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
				[]string{"DATE", "TYPE", "AMOUNT", "CATEGORY", "MERCHANT", "REPEAT", "ID"},
				transactionRows(txs)))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day YYYY-MM-DD")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only this category")
	cmd.Flags().StringVar(&txType, "type", "", "Only expense or income")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "Only recurring templates")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows")
	return cmd
}

func transactionRows(txs []model.Transaction) [][]string {
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		repeat := ""
		if r := t.Recurrence(); r != nil {
			repeat = string(r.Frequency)
		}
		rows = append(rows, []string{
			t.Date.Format(dayLayout),
			string(t.Type),
			formatMoney(t.Amount, t.Currency),
			t.CategoryKey(),
			t.Merchant,
			repeat,
			t.ID,
		})
	}
	return rows
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteTransaction(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
			return nil
		},
	}
}
