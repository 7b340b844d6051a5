package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/stillsuit/internal/backup"
	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/remote/drive"
	"github.com/Veraticus/stillsuit/internal/vault"
)

// Remote backends.
const (
	RemoteMemory   = "memory"
	RemotePostgres = "postgres"
	RemoteDrive    = "drive"
)

// BackupConfig holds everything needed to build a backup coordinator.
type BackupConfig struct {
	Remote          string
	Identity        string
	PostgresDSN     string
	Drive           drive.Config
	Debounce        time.Duration
	UploadTimeout   time.Duration
	EnvelopeVersion int
}

// LoadBackupConfig loads backup settings from Viper, then falls back to
// GOOGLE_DRIVE_* environment variables for Drive credentials.
func LoadBackupConfig() (*BackupConfig, error) {
	cfg := &BackupConfig{
		Remote:          viper.GetString("backup.remote"),
		Identity:        viper.GetString("backup.identity"),
		PostgresDSN:     viper.GetString("backup.postgres.dsn"),
		Debounce:        backup.DefaultDebounce,
		UploadTimeout:   backup.DefaultUploadTimeout,
		EnvelopeVersion: vault.VersionGCM,
	}
	if cfg.Remote == "" {
		cfg.Remote = RemoteMemory
	}
	if viper.IsSet("backup.debounce") {
		cfg.Debounce = viper.GetDuration("backup.debounce")
	}
	if viper.IsSet("backup.upload_timeout") {
		cfg.UploadTimeout = viper.GetDuration("backup.upload_timeout")
	}
	if viper.IsSet("backup.envelope_version") {
		cfg.EnvelopeVersion = viper.GetInt("backup.envelope_version")
	}

	serviceAccount, err := pathSetting("backup.drive.service_account_path", "GOOGLE_DRIVE_SERVICE_ACCOUNT_PATH")
	if err != nil {
		return nil, err
	}
	cfg.Drive = drive.Config{
		ServiceAccountPath: serviceAccount,
		ClientID:           viper.GetString("backup.drive.client_id"),
		ClientSecret:       viper.GetString("backup.drive.client_secret"),
		RefreshToken:       viper.GetString("backup.drive.refresh_token"),
	}
	if cfg.Drive.ClientID == "" {
		cfg.Drive.ClientID = os.Getenv("GOOGLE_DRIVE_CLIENT_ID")
	}
	if cfg.Drive.ClientSecret == "" {
		cfg.Drive.ClientSecret = os.Getenv("GOOGLE_DRIVE_CLIENT_SECRET")
	}
	if cfg.Drive.RefreshToken == "" {
		cfg.Drive.RefreshToken = os.Getenv("GOOGLE_DRIVE_REFRESH_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the remote-specific settings.
func (c *BackupConfig) Validate() error {
	if c.Debounce <= 0 {
		return fmt.Errorf("%w: backup.debounce must be positive", common.ErrInvalidConfig)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("%w: backup.upload_timeout must be positive", common.ErrInvalidConfig)
	}
	if c.EnvelopeVersion != vault.VersionCBC && c.EnvelopeVersion != vault.VersionGCM {
		return fmt.Errorf("%w: backup.envelope_version %d", common.ErrInvalidConfig, c.EnvelopeVersion)
	}

	switch c.Remote {
	case RemoteMemory:
	case RemotePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: backup.postgres.dsn", common.ErrMissingConfig)
		}
	case RemoteDrive:
		if err := c.Drive.Validate(); err != nil {
			return fmt.Errorf("%w: drive: %v", common.ErrInvalidConfig, err)
		}
	default:
		return fmt.Errorf("%w: unknown backup.remote %q", common.ErrInvalidConfig, c.Remote)
	}
	return nil
}
