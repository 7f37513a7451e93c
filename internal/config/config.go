package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete terminal configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Trust    TrustConfig    `yaml:"trust" envconfig:"TRUST"`
	License  LicenseConfig  `yaml:"license" envconfig:"LICENSE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains HTTP server configuration for the local API
// and, in host mode, the LAN-facing trust endpoints.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// TrustConfig contains host/client trust parameters
type TrustConfig struct {
	TokenTTL           time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval" envconfig:"HEARTBEAT_INTERVAL"`
	StalenessWindow    time.Duration `yaml:"staleness_window" envconfig:"STALENESS_WINDOW"`
	SweepInterval      time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL"`
	RequestTimeout     time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	DatabaseShareName  string        `yaml:"database_share_name" envconfig:"DATABASE_SHARE_NAME"`
}

// LicenseConfig contains activation parameters
type LicenseConfig struct {
	AuthorityTimeout  time.Duration `yaml:"authority_timeout" envconfig:"AUTHORITY_TIMEOUT"`
	ActivationRPS     float64       `yaml:"activation_rps" envconfig:"ACTIVATION_RPS"`
	ActivationBurst   int           `yaml:"activation_burst" envconfig:"ACTIVATION_BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system path overrides. Empty values fall back
// to the executable-relative layout from GetPaths.
type PathsConfig struct {
	BaseDir          string `yaml:"base_dir" envconfig:"BASE_DIR"`
	LicenseFile      string `yaml:"license_file" envconfig:"LICENSE_FILE"`
	ConnectionFile   string `yaml:"connection_file" envconfig:"CONNECTION_FILE"`
	SalesKeyFile     string `yaml:"sales_key_file" envconfig:"SALES_KEY_FILE"`
	CardLedgerFile   string `yaml:"card_ledger_file" envconfig:"CARD_LEDGER_FILE"`
}

// Load builds the configuration in three layers: built-in defaults, then the
// optional config file, then environment variables. Each layer only changes
// what it actually sets, so a file value survives unless an env var overrides
// it.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process("POS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfig returns the built-in baseline every installation starts from.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8741,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Trust: TrustConfig{
			TokenTTL:          720 * time.Hour,
			HeartbeatInterval: 30 * time.Second,
			StalenessWindow:   90 * time.Second,
			SweepInterval:     30 * time.Second,
			RequestTimeout:    10 * time.Second,
			DatabaseShareName: "posdata",
		},
		License: LicenseConfig{
			AuthorityTimeout: 10 * time.Second,
			ActivationRPS:    0.2,
			ActivationBurst:  3,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/posd.log",
		},
	}
}

// loadFromFile overlays a YAML file onto the config. Keys absent from the
// file leave the current values untouched.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate checks configuration invariants
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Trust.TokenTTL <= 0 {
		return fmt.Errorf("trust token TTL must be positive, got %s", c.Trust.TokenTTL)
	}
	if c.Trust.StalenessWindow < c.Trust.HeartbeatInterval {
		return fmt.Errorf("staleness window %s is shorter than heartbeat interval %s",
			c.Trust.StalenessWindow, c.Trust.HeartbeatInterval)
	}
	return nil
}

// getConfigFilePath returns the config file location next to the executable
func getConfigFilePath() string {
	paths, err := GetPaths()
	if err != nil {
		return "config.yaml"
	}
	return paths.ConfigFile
}
