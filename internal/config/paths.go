package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all per-installation file locations.
// This is the single source of truth for file paths in the terminal:
// the encoded license, the connection configuration, the sales-key audit
// marker and the offline card ledger all live under one base directory.
type Paths struct {
	BaseDir string
	LogsDir string

	ConfigFile      string
	LicenseFile     string
	ConnectionFile  string
	SalesKeyFile    string
	CardLedgerFile  string
	CredentialsFile string
}

// GetPaths returns the installation paths relative to the executable
// location. Paths are never resolved against the current working directory,
// so the terminal behaves the same regardless of how it was launched.
func GetPaths() (*Paths, error) {
	base := os.Getenv("POS_PATHS_BASE_DIR")
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		base = filepath.Dir(exe)
	}

	return &Paths{
		BaseDir:         base,
		LogsDir:         filepath.Join(base, "logs"),
		ConfigFile:      filepath.Join(base, "config.yaml"),
		LicenseFile:     filepath.Join(base, "license.dat"),
		ConnectionFile:  filepath.Join(base, "connection.json"),
		SalesKeyFile:    filepath.Join(base, "saleskey.dat"),
		CardLedgerFile:  filepath.Join(base, "cards.json"),
		CredentialsFile: filepath.Join(base, "admin.cred"),
	}, nil
}

// Resolve applies config overrides on top of the default layout.
func (p *Paths) Resolve(overrides PathsConfig) {
	if overrides.BaseDir != "" {
		p.BaseDir = overrides.BaseDir
		p.LogsDir = filepath.Join(overrides.BaseDir, "logs")
		p.ConfigFile = filepath.Join(overrides.BaseDir, "config.yaml")
		p.LicenseFile = filepath.Join(overrides.BaseDir, "license.dat")
		p.ConnectionFile = filepath.Join(overrides.BaseDir, "connection.json")
		p.SalesKeyFile = filepath.Join(overrides.BaseDir, "saleskey.dat")
		p.CardLedgerFile = filepath.Join(overrides.BaseDir, "cards.json")
		p.CredentialsFile = filepath.Join(overrides.BaseDir, "admin.cred")
	}
	if overrides.LicenseFile != "" {
		p.LicenseFile = overrides.LicenseFile
	}
	if overrides.ConnectionFile != "" {
		p.ConnectionFile = overrides.ConnectionFile
	}
	if overrides.SalesKeyFile != "" {
		p.SalesKeyFile = overrides.SalesKeyFile
	}
	if overrides.CardLedgerFile != "" {
		p.CardLedgerFile = overrides.CardLedgerFile
	}
}

// EnsureDirectories creates the directories the terminal writes into.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.BaseDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a file exists at the given path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
