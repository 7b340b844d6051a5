package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Veraticus/stillsuit/internal/backup"
	"github.com/Veraticus/stillsuit/internal/cli"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/storage"
)

const flushTimeout = 30 * time.Second

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted remote backup of the whole database",
		Long: `Back up every table to the configured remote (backup.remote: memory,
postgres or drive), encrypted with the secret stored by "stillsuit secret set".

The remote keeps one backup per identity (backup.identity); each upload
replaces the previous one.`,
	}

	cmd.AddCommand(exportBackupCmd())
	cmd.AddCommand(uploadBackupCmd())
	cmd.AddCommand(downloadBackupCmd())
	cmd.AddCommand(clearBackupCmd())
	cmd.AddCommand(watchBackupCmd())
	return cmd
}

func exportBackupCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the unencrypted snapshot JSON to a file or stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			coord, closeCoord, err := newCoordinator(ctx, store)
			if err != nil {
				return err
			}
			defer closeCoord()

			snap, err := coord.ExportSnapshot(ctx)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d rows to %s", snap.RowCount(), outPath)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

func uploadBackupCmd() *cobra.Command {
	var retries int

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Encrypt and upload a backup now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			coord, closeCoord, err := newCoordinator(ctx, store)
			if err != nil {
				return err
			}
			defer closeCoord()

			err = common.WithRetry(ctx, func() error {
				return retryableBackupError(coord.UploadBackup(ctx))
			}, common.RetryOptions{MaxAttempts: retries, InitialDelay: time.Second})
			if err != nil {
				return explainBackupError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(cli.VaultIcon+" Backup uploaded"))
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", 3, "Attempts before giving up on network errors")
	return cmd
}

func downloadBackupCmd() *cobra.Command {
	var noCheckpoint bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download, decrypt and restore the remote backup, replacing local data",
		Long: `Download the backup for the configured identity and replace every local
table with its contents in one atomic step.

A local checkpoint is taken first so the restore can be undone with
"stillsuit checkpoint restore".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var opts []backup.Option
			if !noCheckpoint {
				opts = append(opts, backup.WithBeforeRestore(checkpointBeforeRestore(store, out)))
			}

			coord, closeCoord, err := newCoordinator(ctx, store, opts...)
			if err != nil {
				return err
			}
			defer closeCoord()

			snap, err := coord.DownloadAndRestore(ctx)
			if err != nil {
				return explainBackupError(err)
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Restored %d rows (schema %d)", snap.RowCount(), snap.SchemaVersion)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCheckpoint, "no-checkpoint", false, "Skip the local checkpoint before restoring")
	return cmd
}

func checkpointBeforeRestore(store *storage.SQLiteStorage, out io.Writer) func(context.Context) error {
	return func(ctx context.Context) error {
		manager, err := store.NewCheckpointManager()
		if err != nil {
			return err
		}
		info, err := manager.AutoCheckpoint(ctx, "restore")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatInfo("Saved checkpoint "+info.ID))
		return nil
	}
}

func clearBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the remote backup for this identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			coord, closeCoord, err := newCoordinator(ctx, store)
			if err != nil {
				return err
			}
			defer closeCoord()

			if err := coord.ClearRemoteBackup(ctx); err != nil {
				return explainBackupError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Remote backup deleted"))
			return nil
		},
	}
}

func watchBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Record transactions from stdin with debounced automatic backup",
		Long: `Read one transaction per line from stdin and save it. Every change
queues a backup; bursts of changes within backup.debounce collapse into a
single upload. A pending upload is flushed on exit.

Line format: YYYY-MM-DD AMOUNT MERCHANT [CATEGORY]`,
		Example: `  printf '2025-03-01 4.20 Cafe food\n2025-03-01 60 Grocer food\n' | stillsuit backup watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			handler := cli.NewInterruptHandler(out, "Watch", "Flushing pending backup...")
			ctx := handler.HandleInterrupts(cmd.Context())

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			coord, closeCoord, err := newCoordinator(ctx, store)
			if err != nil {
				return err
			}
			defer closeCoord()

			store.OnChange(coord.QueueUpload)

			reader := cli.NewLineReader(os.Stdin)
			for {
				line, err := reader.ReadLine(ctx)
				if errors.Is(err, io.EOF) || errors.Is(err, cli.ErrInputCancelled) {
					break
				}
				if err != nil {
					return err
				}
				if line == "" {
					continue
				}

				txn, err := parseWatchLine(line)
				if err != nil {
					fmt.Fprintln(out, cli.FormatWarning(err.Error()))
					continue
				}
				if err := store.SaveTransaction(ctx, txn); err != nil {
					fmt.Fprintln(out, cli.FormatError(err.Error()))
					continue
				}
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s %s %s",
					txn.Date.Format(dayLayout), txn.Merchant, formatMoney(txn.Amount, txn.Currency))))
			}

			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			defer cancel()
			if err := coord.Scheduler().Flush(flushCtx); err != nil {
				return explainBackupError(err)
			}
			slog.Debug("Watch finished", "interrupted", handler.WasInterrupted())
			return nil
		},
	}
}

func parseWatchLine(line string) (*model.Transaction, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, fmt.Errorf("want DATE AMOUNT MERCHANT [CATEGORY], got %q", line)
	}
	date, err := parseDay(fields[0])
	if err != nil {
		return nil, err
	}
	amount, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || amount < 0 {
		return nil, fmt.Errorf("invalid amount %q", fields[1])
	}

	txn := &model.Transaction{
		ID:       uuid.NewString(),
		Type:     model.TypeExpense,
		Amount:   amount,
		Currency: "EUR",
		Date:     date,
		Merchant: fields[2],
		Source:   model.SourceManual,
	}
	if len(fields) > 3 {
		txn.CategoryID = model.StringPtr(fields[3])
	}
	return txn, nil
}

// retryableBackupError marks failures that a retry cannot fix.
func retryableBackupError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backup.ErrNoSecret),
		errors.Is(err, backup.ErrNotSignedIn),
		errors.Is(err, backup.ErrUnsupportedVersion),
		errors.Is(err, storage.ErrAtomicity):
		return common.Permanent(err)
	}
	return err
}

// explainBackupError adds the user-facing next step for known failures.
func explainBackupError(err error) error {
	switch {
	case errors.Is(err, backup.ErrNoSecret):
		return common.NewUserError(`no backup secret; run "stillsuit secret set"`, err)
	case errors.Is(err, backup.ErrNotSignedIn):
		return common.NewUserError("no backup identity; set backup.identity in the config", err)
	case errors.Is(err, backup.ErrNotFound):
		return common.NewUserError("no remote backup exists for this identity", err)
	case errors.Is(err, backup.ErrDecryption):
		return common.NewUserError(`backup cannot be decrypted with this secret; check the secret or run "stillsuit backup clear"`, err)
	case errors.Is(err, backup.ErrIncompatibleSchema):
		return common.NewUserError("backup comes from a newer version of stillsuit; upgrade first", err)
	}
	return err
}
