package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/Veraticus/stillsuit/internal/backup"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/secret"
)

func setupCLI(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("database.path", filepath.Join(t.TempDir(), "stillsuit.db"))
	keyring.MockInit()
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCategoryAndTransactionCommands(t *testing.T) {
	setupCLI(t)

	_, err := run(t, categoriesCmd(), "add", "Eating Out")
	require.NoError(t, err)

	out, err := run(t, categoriesCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "eating-out")

	_, err = run(t, transactionsCmd(), "add", "950", "--merchant", "Landlord",
		"--date", "2025-01-01", "--repeat", "monthly:1")
	require.NoError(t, err)
	_, err = run(t, transactionsCmd(), "add", "12.5", "--merchant", "Bakery",
		"--date", "2025-02-10", "--category", "eating-out")
	require.NoError(t, err)

	out, err = run(t, transactionsCmd(), "list", "--recurring")
	require.NoError(t, err)
	assert.Contains(t, out, "Landlord")
	assert.NotContains(t, out, "Bakery")

	out, err = run(t, expandCmd(), "--from", "2025-02-01", "--to", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-02-01")
	assert.Contains(t, out, "2025-03-01")
	assert.Contains(t, out, "Bakery")

	out, err = run(t, expandCmd(), "--from", "2025-02-01", "--to", "2025-03-31", "--dates-only")
	require.NoError(t, err)
	assert.Contains(t, out, "__2025-03-01")
}

func TestTransactionAdd_InvalidInput(t *testing.T) {
	setupCLI(t)

	_, err := run(t, transactionsCmd(), "add", "abc")
	var ue *common.UserError
	assert.ErrorAs(t, err, &ue)

	_, err = run(t, transactionsCmd(), "add", "5", "--date", "01/02/2025")
	assert.ErrorAs(t, err, &ue)
}

func TestInsightsJSON(t *testing.T) {
	setupCLI(t)

	_, err := run(t, transactionsCmd(), "add", "100", "--merchant", "Grocer", "--date", "2025-03-05")
	require.NoError(t, err)
	_, err = run(t, budgetsCmd(), "add", "50")
	require.NoError(t, err)

	out, err := run(t, insightsCmd(), "--json", "--as-of", "2025-03-10")
	require.NoError(t, err)

	var result struct {
		Overview struct {
			CurrentMonthTotal float64
		}
		Predictions struct {
			Overruns []json.RawMessage
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 100.0, result.Overview.CurrentMonthTotal)
	assert.Len(t, result.Predictions.Overruns, 1)
}

func TestBackupCommands(t *testing.T) {
	setupCLI(t)
	viper.Set("backup.identity", "user-1")

	_, err := run(t, backupCmd(), "upload", "--retries", "1")
	assert.ErrorIs(t, err, backup.ErrNoSecret)

	require.NoError(t, secret.NewStore().Save("hunter2"))

	out, err := run(t, backupCmd(), "upload")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup uploaded")

	// Each process gets a fresh in-memory remote.
	_, err = run(t, backupCmd(), "download")
	assert.ErrorIs(t, err, backup.ErrNotFound)

	out, err = run(t, backupCmd(), "export")
	require.NoError(t, err)
	var snap backup.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, backup.SnapshotVersion, snap.Version)
}

func TestBackupUpload_NotSignedIn(t *testing.T) {
	setupCLI(t)
	require.NoError(t, secret.NewStore().Save("hunter2"))

	_, err := run(t, backupCmd(), "upload")
	assert.ErrorIs(t, err, backup.ErrNotSignedIn)
	var ue *common.UserError
	assert.ErrorAs(t, err, &ue)
}

func TestCheckpointCommands(t *testing.T) {
	setupCLI(t)

	_, err := run(t, transactionsCmd(), "add", "10", "--merchant", "Before", "--date", "2025-03-01")
	require.NoError(t, err)
	_, err = run(t, checkpointCmd(), "create", "--tag", "safe")
	require.NoError(t, err)
	_, err = run(t, transactionsCmd(), "add", "20", "--merchant", "After", "--date", "2025-03-02")
	require.NoError(t, err)

	out, err := run(t, checkpointCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "safe")

	_, err = run(t, checkpointCmd(), "restore", "safe")
	require.NoError(t, err)

	out, err = run(t, transactionsCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Before")
	assert.NotContains(t, out, "After")

	_, err = run(t, checkpointCmd(), "delete", "safe")
	require.NoError(t, err)
}

func TestParseRepeat(t *testing.T) {
	tests := []struct {
		want    *model.RecurringRule
		input   string
		wantErr bool
	}{
		{input: "daily", want: model.Daily()},
		{input: "weekly", want: model.Weekly()},
		{input: "weekly:mon,thu", want: model.Weekly(time.Monday, time.Thursday)},
		{input: "monthly", want: model.Monthly(0)},
		{input: "Monthly:31", want: model.Monthly(31)},
		{input: "monthly:32", wantErr: true},
		{input: "weekly:funday", wantErr: true},
		{input: "yearly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseRepeat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Frequency, got.Frequency)
			assert.Equal(t, tt.want.MonthDay, got.MonthDay)
			assert.ElementsMatch(t, tt.want.Weekdays, got.Weekdays)
		})
	}
}

func TestParseWatchLine(t *testing.T) {
	txn, err := parseWatchLine("2025-03-01 4.20 Cafe food")
	require.NoError(t, err)
	assert.Equal(t, 4.2, txn.Amount)
	assert.Equal(t, "Cafe", txn.Merchant)
	assert.Equal(t, "food", txn.CategoryKey())

	_, err = parseWatchLine("2025-03-01 4.20")
	assert.Error(t, err)
	_, err = parseWatchLine("2025-03-01 lots Cafe")
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "eating-out", slugify("Eating Out"))
	assert.Equal(t, "bills-utilities", slugify("Bills & Utilities!"))
	assert.Equal(t, "", slugify("!!!"))
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", formatRelativeTime(now, now.Add(-10*time.Second)))
	assert.Equal(t, "1 minute ago", formatRelativeTime(now, now.Add(-time.Minute)))
	assert.Equal(t, "5 hours ago", formatRelativeTime(now, now.Add(-5*time.Hour)))
	assert.Equal(t, "yesterday", formatRelativeTime(now, now.Add(-30*time.Hour)))
	assert.Equal(t, "3 days ago", formatRelativeTime(now, now.Add(-72*time.Hour)))
}

func TestRetryableBackupError(t *testing.T) {
	assert.NoError(t, retryableBackupError(nil))
	assert.False(t, common.IsRetryable(retryableBackupError(backup.ErrNoSecret)))
	assert.True(t, common.IsRetryable(retryableBackupError(assert.AnError)))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "12.50 EUR", formatMoney(12.5, "EUR"))
	assert.Equal(t, "20.0%", formatPercent(20))
	assert.Equal(t, "1.5 KB", formatFileSize(1536))
}

func TestReportSummary(t *testing.T) {
	setupCLI(t)

	_, err := run(t, transactionsCmd(), "add", "950", "--merchant", "Landlord",
		"--date", "2025-01-01", "--repeat", "monthly:1")
	require.NoError(t, err)
	_, err = run(t, transactionsCmd(), "add", "12.5", "--merchant", "Bakery", "--date", "2025-02-10")
	require.NoError(t, err)
	_, err = run(t, transactionsCmd(), "add", "3000", "--merchant", "Employer",
		"--date", "2025-02-25", "--income")
	require.NoError(t, err)

	out, err := run(t, reportCmd(), "summary", "--from", "2025-02-01", "--to", "2025-03-31")
	require.NoError(t, err)
	assert.Contains(t, out, "1912.50")
	assert.Contains(t, out, "3000.00")
	assert.Contains(t, out, "1087.50")
	assert.Contains(t, out, "Uncategorized")

	_, err = run(t, reportCmd(), "summary", "--from", "2025-03-31", "--to", "2025-02-01")
	var ue *common.UserError
	assert.ErrorAs(t, err, &ue)
}

func TestReportSheets_NoCredentials(t *testing.T) {
	setupCLI(t)
	for _, k := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET", "GOOGLE_SHEETS_REFRESH_TOKEN",
	} {
		t.Setenv(k, "")
	}

	_, err := run(t, reportCmd(), "sheets", "--from", "2025-02-01", "--to", "2025-02-28")
	var ue *common.UserError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestAuthGoogle_RequiresClient(t *testing.T) {
	setupCLI(t)

	_, err := run(t, authCmd(), "google")
	var ue *common.UserError
	assert.ErrorAs(t, err, &ue)
}
