package onboarding

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConfigStore persists the ConnectionConfig as JSON at a fixed path.
type ConfigStore struct {
	path string
}

// NewConfigStore creates a store writing to path.
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path}
}

// Save writes the config. The file is mode 0600: it carries the bearer
// token for client installations.
func (s *ConfigStore) Save(cfg *ConnectionConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode connection config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write connection config: %w", err)
	}
	return nil
}

// Load reads the persisted config. A missing file is ErrNotConfigured; a
// file that cannot be decoded is ErrCorruptState.
func (s *ConfigStore) Load() (*ConnectionConfig, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connection config: %w", err)
	}

	var cfg ConnectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if cfg.IsClient == cfg.IsHost {
		return nil, fmt.Errorf("%w: mode flags are inconsistent", ErrCorruptState)
	}
	return &cfg, nil
}

// Exists reports whether a config file is present, readable or not.
func (s *ConfigStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Reset removes the persisted config so onboarding can run again.
func (s *ConfigStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove connection config: %w", err)
	}
	return nil
}
