// Package credentials stores the admin password used by the minutes CLI
// in the system keyring (macOS Keychain, Windows Credential Manager, Linux
// Secret Service).
package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service entries are stored under.
	ServiceName = "minutes"
	// adminUser is the keyring account holding the admin password.
	adminUser = "admin-password"

	// EnvPassword overrides the stored password when set.
	EnvPassword = "MINUTES_PASSWORD"
)

// ErrNoCredentials is returned when no password is stored.
var ErrNoCredentials = errors.New("no stored credentials")

// ErrKeyringUnavailable indicates the system keyring could not be used.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// Source says where a password came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceEnv     Source = "environment"
	SourceKeyring Source = "keyring"
)

// Store reads and writes the admin password.
type Store interface {
	// Password returns the password and where it came from. It returns
	// ErrNoCredentials when none is available.
	Password() (string, Source, error)
	SetPassword(password string) error
	Delete() error
	Description() string
}

// KeyringStore is a Store backed by the system keyring.
type KeyringStore struct {
	mu      sync.Mutex
	service string
}

// NewKeyringStore creates a KeyringStore under ServiceName.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: ServiceName}
}

// Password returns $MINUTES_PASSWORD when set, otherwise the keyring entry.
func (s *KeyringStore) Password() (string, Source, error) {
	if env := os.Getenv(EnvPassword); env != "" {
		return env, SourceEnv, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pw, err := keyring.Get(s.service, adminUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", SourceNone, ErrNoCredentials
	}
	if err != nil {
		return "", SourceNone, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return pw, SourceKeyring, nil
}

// SetPassword stores password in the keyring.
func (s *KeyringStore) SetPassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(s.service, adminUser, password); err != nil {
		return fmt.Errorf("%w: storing password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Delete removes the stored password. Deleting a missing entry returns
// ErrNoCredentials.
func (s *KeyringStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := keyring.Delete(s.service, adminUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoCredentials
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description returns a human-readable name for the keyring in use.
func (s *KeyringStore) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// MaskSecret returns secret with all but its first and last two characters
// hidden. Short secrets are fully masked.
func MaskSecret(secret string) string {
	if len(secret) <= 6 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
