package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// DeviceFingerprint represents device identification information
type DeviceFingerprint struct {
	Fingerprint string    `json:"fingerprint"`
	Hostname    string    `json:"hostname"`
	MachineID   string    `json:"machine_id"`
	MACAddress  string    `json:"mac_address"`
	CPUID       string    `json:"cpu_id"`
	OS          string    `json:"os"`
	Platform    string    `json:"platform"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FingerprintManager derives the stable machine identifier that licenses
// and connection tokens are bound to. The identifier combines several
// independent hardware signals so that swapping a single component does not
// trivially change it, and is recomputed on demand rather than persisted.
type FingerprintManager struct {
	cache         *DeviceFingerprint
	cacheMutex    sync.RWMutex
	cacheExpiry   time.Time
	cacheDuration time.Duration
}

// NewFingerprintManager creates a new fingerprint manager with caching
func NewFingerprintManager() *FingerprintManager {
	return &FingerprintManager{
		cacheDuration: 1 * time.Hour,
	}
}

// GetMachineID reads the OS installation identifier where available
func (fm *FingerprintManager) GetMachineID() (string, error) {
	// Linux and most container bases
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			id := strings.TrimSpace(string(data))
			if id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("no machine-id available on %s", runtime.GOOS)
}

// GetMACAddresses retrieves sorted non-loopback MAC addresses. Sorting keeps
// the combined fingerprint stable across interface enumeration order.
func (fm *FingerprintManager) GetMACAddresses() ([]string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) > 0 {
			mac := iface.HardwareAddr.String()
			if mac != "" && mac != "00:00:00:00:00:00" {
				macs = append(macs, mac)
			}
		}
	}

	if len(macs) == 0 {
		return nil, fmt.Errorf("no valid MAC address found")
	}
	sort.Strings(macs)
	return macs, nil
}

// GetHostname retrieves the normalized machine hostname
func (fm *FingerprintManager) GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return "", fmt.Errorf("hostname is empty")
	}

	return hostname, nil
}

// GetCPUID retrieves processor identification information (OS-specific)
func (fm *FingerprintManager) GetCPUID() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if procID := os.Getenv("PROCESSOR_IDENTIFIER"); procID != "" {
			return shortHash(procID), nil
		}
		return shortHash(fmt.Sprintf("windows-%s-%s", runtime.GOARCH, os.Getenv("PROCESSOR_ARCHITECTURE"))), nil
	case "linux":
		if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "model name") || strings.HasPrefix(line, "cpu family") {
					return shortHash(line), nil
				}
			}
		}
		return shortHash(fmt.Sprintf("linux-%s", runtime.GOARCH)), nil
	default:
		return shortHash(fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)), nil
	}
}

// shortHash normalizes a raw hardware string to a fixed-length identifier
func shortHash(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:8])
}

// Generate creates the device fingerprint by combining hardware factors.
// Individual signals that cannot be read fall back to a placeholder so a
// single missing component does not change every remaining signal; only
// total unavailability of all hardware signals is an error.
func (fm *FingerprintManager) Generate() (*DeviceFingerprint, error) {
	fm.cacheMutex.RLock()
	if fm.cache != nil && time.Now().Before(fm.cacheExpiry) {
		cached := *fm.cache
		fm.cacheMutex.RUnlock()
		return &cached, nil
	}
	fm.cacheMutex.RUnlock()

	available := 0

	machineID, err := fm.GetMachineID()
	if err != nil {
		machineID = "unknown-machine-id"
		slog.Warn("failed to read machine-id, using fallback", slog.String("error", err.Error()))
	} else {
		available++
	}

	var primaryMAC string
	macs, err := fm.GetMACAddresses()
	if err != nil {
		macs = []string{"unknown-mac"}
		primaryMAC = "unknown-mac"
		slog.Warn("failed to read MAC addresses, using fallback", slog.String("error", err.Error()))
	} else {
		primaryMAC = macs[0]
		available++
	}

	hostname, err := fm.GetHostname()
	if err != nil {
		hostname = "unknown-host"
		slog.Warn("failed to read hostname, using fallback", slog.String("error", err.Error()))
	} else {
		available++
	}

	cpuID, err := fm.GetCPUID()
	if err != nil {
		cpuID = "unknown-cpu"
		slog.Warn("failed to read CPU ID, using fallback", slog.String("error", err.Error()))
	} else {
		available++
	}

	if available == 0 {
		return nil, fmt.Errorf("no hardware signals available for fingerprinting")
	}

	factors := []string{machineID}
	factors = append(factors, macs...)
	factors = append(factors, hostname, cpuID, runtime.GOOS, runtime.GOARCH)

	hash := sha256.Sum256([]byte(strings.Join(factors, "|")))
	fingerprint := hex.EncodeToString(hash[:])

	deviceFingerprint := &DeviceFingerprint{
		Fingerprint: fingerprint,
		Hostname:    hostname,
		MachineID:   machineID,
		MACAddress:  primaryMAC,
		CPUID:       cpuID,
		OS:          runtime.GOOS,
		Platform:    runtime.GOARCH,
		GeneratedAt: time.Now(),
	}

	fm.cacheMutex.Lock()
	fm.cache = deviceFingerprint
	fm.cacheExpiry = time.Now().Add(fm.cacheDuration)
	fm.cacheMutex.Unlock()

	slog.Debug("device fingerprint generated",
		slog.String("fingerprint", fingerprint),
		slog.String("hostname", hostname),
		slog.String("os", runtime.GOOS),
	)

	return deviceFingerprint, nil
}

// GenerateID returns just the fingerprint identifier string
func (fm *FingerprintManager) GenerateID() (string, error) {
	fp, err := fm.Generate()
	if err != nil {
		return "", err
	}
	return fp.Fingerprint, nil
}

// Validate compares the current device fingerprint with a stored one
func (fm *FingerprintManager) Validate(storedFingerprint string) (bool, error) {
	current, err := fm.Generate()
	if err != nil {
		return false, fmt.Errorf("failed to generate current fingerprint: %w", err)
	}
	return current.Fingerprint == storedFingerprint, nil
}

// Components returns individual signal values for diagnostics
func (fm *FingerprintManager) Components() map[string]string {
	machineID, _ := fm.GetMachineID()
	macs, _ := fm.GetMACAddresses()
	hostname, _ := fm.GetHostname()
	cpuID, _ := fm.GetCPUID()

	return map[string]string{
		"machine_id": machineID,
		"mac":        strings.Join(macs, ","),
		"hostname":   hostname,
		"cpu_id":     cpuID,
		"os":         runtime.GOOS,
		"platform":   runtime.GOARCH,
	}
}

// ClearCache clears the cached fingerprint
func (fm *FingerprintManager) ClearCache() {
	fm.cacheMutex.Lock()
	defer fm.cacheMutex.Unlock()

	fm.cache = nil
	fm.cacheExpiry = time.Time{}
}
