// Package secret keeps the backup encryption secret in the OS keychain.
package secret

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/Veraticus/stillsuit/internal/backup"
)

// Keychain coordinates.
const (
	DefaultService = "stillsuit"
	DefaultUser    = "backup-secret"
)

// ErrNoSecret is returned by Load when nothing is stored.
var ErrNoSecret = backup.ErrNoSecret

// Store saves, loads and clears one named secret.
type Store struct {
	service string
	user    string
}

// NewStore creates a store for the default keychain entry.
func NewStore() *Store {
	return &Store{service: DefaultService, user: DefaultUser}
}

// NewNamedStore creates a store for a specific keychain entry.
func NewNamedStore(service, user string) *Store {
	return &Store{service: service, user: user}
}

// Save stores secret, replacing any previous value.
func (s *Store) Save(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}
	if err := keyring.Set(s.service, s.user, secret); err != nil {
		return fmt.Errorf("failed to store secret in keychain: %w", err)
	}
	return nil
}

// Load returns the stored secret or ErrNoSecret.
func (s *Store) Load() (string, error) {
	secret, err := keyring.Get(s.service, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoSecret
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret from keychain: %w", err)
	}
	return secret, nil
}

// Clear removes the stored secret. Clearing an absent secret succeeds.
func (s *Store) Clear() error {
	err := keyring.Delete(s.service, s.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete secret from keychain: %w", err)
	}
	return nil
}
