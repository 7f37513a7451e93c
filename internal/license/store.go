package license

import (
	"fmt"
	"os"
	"strings"
)

// Store persists the encoded license and the sales-key audit marker at
// their fixed per-installation locations. The stored license is an opaque
// string readable by nothing but the Codec; the audit marker lets the
// recovery flow cross-check which sales key produced this installation.
type Store struct {
	codec        *Codec
	licensePath  string
	salesKeyPath string
}

// NewStore creates a license store over the given file locations.
func NewStore(codec *Codec, licensePath, salesKeyPath string) *Store {
	return &Store{
		codec:        codec,
		licensePath:  licensePath,
		salesKeyPath: salesKeyPath,
	}
}

// Save encodes and writes the record, plus the sales-key audit marker.
// Both writes use restricted permissions; the license file is written last
// so a partially completed save never leaves a license without its marker.
func (s *Store) Save(record *Record) error {
	encoded, err := s.codec.Encode(record)
	if err != nil {
		return fmt.Errorf("failed to encode license: %w", err)
	}

	if err := os.WriteFile(s.salesKeyPath, []byte(record.SalesKey+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write sales key marker: %w", err)
	}
	if err := os.WriteFile(s.licensePath, []byte(encoded+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write license file: %w", err)
	}
	return nil
}

// Load reads and decodes the persisted license.
// A missing file yields ErrNotActivated; an unreadable or tampered file
// yields ErrDecode (full re-onboarding, never read-modify-write).
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.licensePath)
	if os.IsNotExist(err) {
		return nil, ErrNotActivated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read license file: %w", err)
	}

	return s.codec.Decode(strings.TrimSpace(string(data)))
}

// LoadEncoded returns the raw encoded license string.
func (s *Store) LoadEncoded() (string, error) {
	data, err := os.ReadFile(s.licensePath)
	if os.IsNotExist(err) {
		return "", ErrNotActivated
	}
	if err != nil {
		return "", fmt.Errorf("failed to read license file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SalesKeyMarker returns the persisted audit marker, empty when absent.
func (s *Store) SalesKeyMarker() (string, error) {
	data, err := os.ReadFile(s.salesKeyPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read sales key marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Exists reports whether a license file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.licensePath)
	return err == nil && !info.IsDir()
}

// Reset removes all persisted license state. Only a full device reset
// calls this; normal re-activation supersedes the record via Save.
func (s *Store) Reset() error {
	for _, path := range []string{s.licensePath, s.salesKeyPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
