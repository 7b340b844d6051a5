package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/stillsuit/internal/common"
	"github.com/Veraticus/stillsuit/internal/sheets"
)

// LoadSheetsConfig loads report.sheets settings. Credentials fall back to
// GOOGLE_SHEETS_* environment variables, then to the backup.drive OAuth2
// client, since one consent grants both scopes.
func LoadSheetsConfig() (sheets.Config, error) {
	cfg := sheets.DefaultConfig()
	cfg.SpreadsheetID = viper.GetString("report.sheets.spreadsheet_id")
	if name := viper.GetString("report.sheets.spreadsheet_name"); name != "" {
		cfg.SpreadsheetName = name
	}
	if tz := viper.GetString("report.sheets.time_zone"); tz != "" {
		cfg.TimeZone = tz
	}
	if viper.IsSet("report.sheets.batch_size") {
		cfg.BatchSize = viper.GetInt("report.sheets.batch_size")
	}
	if viper.IsSet("report.sheets.formatting") {
		cfg.EnableFormatting = viper.GetBool("report.sheets.formatting")
	}

	serviceAccount, err := pathSetting("report.sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	if err != nil {
		return cfg, err
	}
	cfg.ServiceAccountPath = serviceAccount
	cfg.ClientID = firstNonEmpty(viper.GetString("report.sheets.client_id"), os.Getenv("GOOGLE_SHEETS_CLIENT_ID"))
	cfg.ClientSecret = firstNonEmpty(viper.GetString("report.sheets.client_secret"), os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET"))
	cfg.RefreshToken = firstNonEmpty(viper.GetString("report.sheets.refresh_token"), os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN"))
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}

	if cfg.ServiceAccountPath == "" && cfg.ClientID == "" && cfg.RefreshToken == "" {
		cfg.ClientID = viper.GetString("backup.drive.client_id")
		cfg.ClientSecret = viper.GetString("backup.drive.client_secret")
		cfg.RefreshToken = viper.GetString("backup.drive.refresh_token")
	}

	if err := cfg.Validate(); err != nil {
		if cfg.ServiceAccountPath == "" && cfg.RefreshToken == "" {
			return cfg, fmt.Errorf("%w: report.sheets credentials", common.ErrMissingConfig)
		}
		return cfg, fmt.Errorf("%w: report.sheets: %v", common.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
