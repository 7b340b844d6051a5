// Package drive stores encrypted backups in the Google Drive app data folder.
package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/Veraticus/stillsuit/internal/backup"
)

const (
	appDataFolder   = "appDataFolder"
	filePrefix      = "stillsuit-backup-"
	updatedAtKey    = "stillsuit_updated_at"
	backupMediaType = "application/json"
)

// Config holds the credentials used to reach Drive.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
}

// Validate checks that exactly one authentication method is configured.
func (c Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}
	return nil
}

// Store keeps one file per identity.
type Store struct {
	srv *gdrive.Service
}

// New authenticates with cfg and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var tokenSource oauth2.TokenSource
	if cfg.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(cfg.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, gdrive.DriveAppdataScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gdrive.DriveAppdataScope},
		}
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: cfg.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := gdrive.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}
	return NewWithService(srv), nil
}

// NewWithService wraps an existing Drive client.
func NewWithService(srv *gdrive.Service) *Store {
	return &Store{srv: srv}
}

func fileName(identity string) string {
	return filePrefix + identity + ".json"
}

// find returns the backup file for identity, or nil.
func (s *Store) find(ctx context.Context, identity string) (*gdrive.File, error) {
	name := strings.ReplaceAll(fileName(identity), "'", `\'`)
	list, err := s.srv.Files.List().
		Spaces(appDataFolder).
		Q(fmt.Sprintf("name = '%s' and trashed = false", name)).
		Fields("files(id, name, modifiedTime, appProperties)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing backup files: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return list.Files[0], nil
}

// Upsert creates or overwrites the backup file for identity.
func (s *Store) Upsert(ctx context.Context, identity, payload string, updatedAt time.Time) error {
	existing, err := s.find(ctx, identity)
	if err != nil {
		return err
	}

	props := map[string]string{updatedAtKey: updatedAt.UTC().Format(time.RFC3339Nano)}
	media := strings.NewReader(payload)

	if existing == nil {
		_, err = s.srv.Files.Create(&gdrive.File{
			Name:          fileName(identity),
			Parents:       []string{appDataFolder},
			MimeType:      backupMediaType,
			AppProperties: props,
		}).Media(media).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("creating backup file: %w", err)
		}
		return nil
	}

	_, err = s.srv.Files.Update(existing.Id, &gdrive.File{AppProperties: props}).
		Media(media).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("updating backup file: %w", err)
	}
	return nil
}

// Fetch downloads the backup file for identity or returns backup.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, identity string) (*backup.Record, error) {
	f, err := s.find(ctx, identity)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", backup.ErrNotFound, identity)
	}

	resp, err := s.srv.Files.Get(f.Id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("downloading backup file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backup file: %w", err)
	}

	return &backup.Record{Payload: string(body), UpdatedAt: fileUpdatedAt(f)}, nil
}

// Delete removes the backup file for identity if it exists.
func (s *Store) Delete(ctx context.Context, identity string) error {
	f, err := s.find(ctx, identity)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	if err := s.srv.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting backup file: %w", err)
	}
	return nil
}

// fileUpdatedAt prefers the stored property over Drive's modifiedTime.
func fileUpdatedAt(f *gdrive.File) time.Time {
	if v, ok := f.AppProperties[updatedAtKey]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		return t
	}
	return time.Time{}
}
