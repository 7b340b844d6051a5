package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/stillsuit/internal/backup"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/config"
	"github.com/Veraticus/stillsuit/internal/model"
	"github.com/Veraticus/stillsuit/internal/remote/drive"
	"github.com/Veraticus/stillsuit/internal/remote/memory"
	"github.com/Veraticus/stillsuit/internal/remote/postgres"
	"github.com/Veraticus/stillsuit/internal/secret"
	"github.com/Veraticus/stillsuit/internal/storage"
	"github.com/Veraticus/stillsuit/internal/vault"
)

const dayLayout = model.DateLayout

// initStorage opens the configured database and applies migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, common.NewUserError("could not resolve the database path", err)
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError("could not open database", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// openRemote builds the configured remote store. The returned func releases it.
func openRemote(ctx context.Context, cfg *config.BackupConfig) (backup.RemoteStore, func(), error) {
	switch cfg.Remote {
	case config.RemotePostgres:
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, common.NewUserError("could not reach backup database", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.RemoteDrive:
		d, err := drive.New(ctx, cfg.Drive)
		if err != nil {
			return nil, nil, common.NewUserError("could not connect to Google Drive", err)
		}
		return d, func() {}, nil
	default:
		return memory.New(), func() {}, nil
	}
}

// newCoordinator wires the store, keychain secret and remote into a
// backup coordinator.
func newCoordinator(ctx context.Context, store *storage.SQLiteStorage, opts ...backup.Option) (*backup.Coordinator, func(), error) {
	cfg, err := config.LoadBackupConfig()
	if err != nil {
		return nil, nil, err
	}

	remote, release, err := openRemote(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	codec, err := vault.NewCodec(vault.WithVersion(cfg.EnvelopeVersion))
	if err != nil {
		release()
		return nil, nil, err
	}

	opts = append([]backup.Option{
		backup.WithCodec(codec),
		backup.WithDebounce(cfg.Debounce),
		backup.WithUploadTimeout(cfg.UploadTimeout),
	}, opts...)

	coord, err := backup.NewCoordinator(store, secret.NewStore(), remote,
		backup.StaticIdentity(cfg.Identity), opts...)
	if err != nil {
		release()
		return nil, nil, err
	}

	return coord, func() {
		coord.Close()
		release()
	}, nil
}

// parseDay parses a YYYY-MM-DD flag value as a local calendar day.
func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, common.NewUserError(fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", s), err)
	}
	return t, nil
}

func formatMoney(amount float64, currency string) string {
	return decimal.NewFromFloat(amount).StringFixed(2) + " " + currency
}

func formatPercent(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(1) + "%"
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day") + " ago"
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
