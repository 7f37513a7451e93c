// Package config provides layered configuration for the POS terminal:
// environment variables (POS_ prefix) over an optional config.yaml, plus
// centralized resolution of per-installation file paths (license file,
// connection configuration, sales-key audit marker, card ledger).
package config
