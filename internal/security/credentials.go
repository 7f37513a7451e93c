package security

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoCredential is returned when no recovery credential has been set yet.
var ErrNoCredential = errors.New("no recovery credential configured")

// CredentialStore persists the admin recovery credential as a single
// argon2id hash on disk. Setting a new credential replaces the old one;
// verification never reveals which part of the check failed.
type CredentialStore struct {
	mu   sync.Mutex
	path string
}

// NewCredentialStore creates a store backed by the given file.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Set hashes the password and writes it, replacing any previous credential.
func (s *CredentialStore) Set(password string) error {
	encoded, err := HashPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, []byte(encoded+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write recovery credential: %w", err)
	}
	return nil
}

// Verify checks a password against the stored credential.
func (s *CredentialStore) Verify(password string) (bool, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if os.IsNotExist(err) {
		return false, ErrNoCredential
	}
	if err != nil {
		return false, fmt.Errorf("failed to read recovery credential: %w", err)
	}

	return VerifyPassword(password, strings.TrimSpace(string(data)))
}

// Exists reports whether a credential has been configured.
func (s *CredentialStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path)
	return err == nil
}
