package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/stillsuit/internal/service"
	"github.com/Veraticus/stillsuit/internal/vault"
)

// Backup errors.
var (
	ErrNotFound           = errors.New("no remote backup for this identity")
	ErrNotSignedIn        = errors.New("not signed in to a remote identity")
	ErrNoSecret           = errors.New("no backup secret stored")
	ErrIncompatibleSchema = errors.New("backup was written by a newer schema")
	ErrUnsupportedVersion = vault.ErrUnsupportedVersion
	ErrDecryption         = vault.ErrDecryption
)

// LocalStore is the part of the persistent store a backup touches.
type LocalStore interface {
	SchemaVersion(ctx context.Context) (int, error)
	ExportTables(ctx context.Context) (service.Tables, error)
	ReplaceTables(ctx context.Context, tables service.Tables) error
}

// SecretStore holds the backup encryption secret.
type SecretStore interface {
	Load() (string, error)
}

// Record is the single remote row kept per identity.
type Record struct {
	UpdatedAt time.Time
	Payload   string
}

// RemoteStore keeps one opaque payload per identity. Fetch returns
// ErrNotFound when no row exists; Delete of a missing row is not an error.
type RemoteStore interface {
	Upsert(ctx context.Context, identity string, payload string, updatedAt time.Time) error
	Fetch(ctx context.Context, identity string) (*Record, error)
	Delete(ctx context.Context, identity string) error
}

// IdentityProvider returns the signed-in identity, or "" when signed out.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (string, error)
}

// StaticIdentity is an IdentityProvider for a fixed id.
type StaticIdentity string

// CurrentIdentity implements IdentityProvider.
func (s StaticIdentity) CurrentIdentity(context.Context) (string, error) {
	return string(s), nil
}

// Coordinator moves snapshots between the local store and the remote store.
type Coordinator struct {
	store         LocalStore
	secrets       SecretStore
	remote        RemoteStore
	identity      IdentityProvider
	codec         *vault.Codec
	scheduler     *Scheduler
	now           func() time.Time
	beforeRestore func(ctx context.Context) error
	debounce      time.Duration
	uploadTimeout time.Duration
	afterFunc     AfterFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCodec sets the envelope codec.
func WithCodec(codec *vault.Codec) Option {
	return func(c *Coordinator) { c.codec = codec }
}

// WithDebounce sets the delay used by QueueUpload.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = d }
}

// WithUploadTimeout bounds each queued upload. Zero disables the deadline.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.uploadTimeout = d }
}

// WithAfterFunc replaces the timer used by the upload scheduler.
func WithAfterFunc(f AfterFunc) Option {
	return func(c *Coordinator) { c.afterFunc = f }
}

// WithClock sets the clock used for remote timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithBeforeRestore runs fn after a downloaded snapshot has been decrypted
// and validated but before it replaces local data. An error aborts the
// restore.
func WithBeforeRestore(fn func(ctx context.Context) error) Option {
	return func(c *Coordinator) { c.beforeRestore = fn }
}

// NewCoordinator creates a coordinator and its upload scheduler.
func NewCoordinator(store LocalStore, secrets SecretStore, remote RemoteStore, identity IdentityProvider, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		store:         store,
		secrets:       secrets,
		remote:        remote,
		identity:      identity,
		now:           time.Now,
		debounce:      DefaultDebounce,
		uploadTimeout: DefaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.codec == nil {
		codec, err := vault.NewCodec()
		if err != nil {
			return nil, err
		}
		c.codec = codec
	}

	c.scheduler = NewScheduler(c.debounce, c.queuedUpload, c.afterFunc, WithRunTimeout(c.uploadTimeout))
	return c, nil
}

// Scheduler returns the coordinator's upload scheduler.
func (c *Coordinator) Scheduler() *Scheduler {
	return c.scheduler
}

// ExportSnapshot reads every table and the schema version.
func (c *Coordinator) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	version, err := c.store.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	tables, err := c.store.ExportTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export tables: %w", err)
	}
	return &Snapshot{
		Version:       SnapshotVersion,
		SchemaVersion: version,
		Tables:        tables,
	}, nil
}

// RestoreSnapshot replaces all local tables with the snapshot's rows in one
// atomic operation.
func (c *Coordinator) RestoreSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrUnsupportedVersion)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: snapshot version %d", ErrUnsupportedVersion, snap.Version)
	}

	local, err := c.store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if snap.SchemaVersion > local {
		return fmt.Errorf("%w: backup schema %d, local schema %d", ErrIncompatibleSchema, snap.SchemaVersion, local)
	}

	if err := c.store.ReplaceTables(ctx, snap.Tables); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	slog.Info("Restored snapshot", "rows", snap.RowCount(), "schema_version", snap.SchemaVersion)
	return nil
}

// UploadBackup encrypts a fresh snapshot and replaces the remote row for
// the current identity.
func (c *Coordinator) UploadBackup(ctx context.Context) error {
	identity, secret, err := c.credentials(ctx)
	if err != nil {
		return err
	}

	snap, err := c.ExportSnapshot(ctx)
	if err != nil {
		return err
	}
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	env, err := c.codec.Encrypt(plaintext, secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}
	payload, err := vault.MarshalEnvelope(env)
	if err != nil {
		return err
	}

	if err := c.remote.Upsert(ctx, identity, payload, c.now().UTC()); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	slog.Info("Uploaded backup",
		"identity", identity,
		"rows", snap.RowCount(),
		"envelope_version", env.Version,
		"bytes", len(payload))
	return nil
}

// DownloadAndRestore fetches, decrypts and restores the current identity's
// backup. A missing backup returns ErrNotFound; an undecryptable one returns
// ErrDecryption so the caller can offer ClearRemoteBackup.
func (c *Coordinator) DownloadAndRestore(ctx context.Context) (*Snapshot, error) {
	identity, secret, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	record, err := c.remote.Fetch(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch backup: %w", err)
	}

	env, err := vault.UnmarshalEnvelope(record.Payload)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.codec.Decrypt(env, secret)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		return nil, fmt.Errorf("%w: decrypted payload is not a snapshot: %v", ErrDecryption, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrUnsupportedVersion, snap.Version)
	}

	if c.beforeRestore != nil {
		if err := c.beforeRestore(ctx); err != nil {
			return nil, fmt.Errorf("pre-restore step failed: %w", err)
		}
	}

	if err := c.RestoreSnapshot(ctx, &snap); err != nil {
		return nil, err
	}

	slog.Info("Downloaded backup", "identity", identity, "updated_at", record.UpdatedAt)
	return &snap, nil
}

// ClearRemoteBackup deletes the current identity's remote row.
func (c *Coordinator) ClearRemoteBackup(ctx context.Context) error {
	identity, err := c.currentIdentity(ctx)
	if err != nil {
		return err
	}
	if err := c.remote.Delete(ctx, identity); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	slog.Info("Cleared remote backup", "identity", identity)
	return nil
}

// QueueUpload schedules a debounced upload. Calls while one is pending or
// running are absorbed.
func (c *Coordinator) QueueUpload() {
	c.scheduler.Queue()
}

// QueueUploadAfter is QueueUpload with an explicit delay.
func (c *Coordinator) QueueUploadAfter(d time.Duration) {
	c.scheduler.QueueAfter(d)
}

// Close drops a pending upload and waits for a running one.
func (c *Coordinator) Close() {
	c.scheduler.Close()
}

func (c *Coordinator) queuedUpload(ctx context.Context) error {
	err := c.UploadBackup(ctx)
	if err != nil {
		identity, _ := c.currentIdentity(ctx)
		slog.Error("Debounced backup upload failed", "identity", identity, "error", err)
	}
	return err
}

func (c *Coordinator) currentIdentity(ctx context.Context) (string, error) {
	if c.identity == nil {
		return "", ErrNotSignedIn
	}
	identity, err := c.identity.CurrentIdentity(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSignedIn, err)
	}
	if identity == "" {
		return "", ErrNotSignedIn
	}
	return identity, nil
}

func (c *Coordinator) credentials(ctx context.Context) (string, string, error) {
	identity, err := c.currentIdentity(ctx)
	if err != nil {
		return "", "", err
	}
	if c.secrets == nil {
		return "", "", ErrNoSecret
	}
	secret, err := c.secrets.Load()
	if err != nil {
		if errors.Is(err, ErrNoSecret) {
			return "", "", err
		}
		return "", "", fmt.Errorf("failed to load backup secret: %w", err)
	}
	if secret == "" {
		return "", "", ErrNoSecret
	}
	return identity, secret, nil
}
