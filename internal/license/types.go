package license

import (
	"time"
)

// License types
const (
	TypeStandalone = "standalone"
	TypeHost       = "host"
	TypeTrial      = "trial"
)

// Renewal status bands reported to the UI collaborator
const (
	StatusActive   = "active"
	StatusWarning  = "warning"  // expires within 14 days
	StatusCritical = "critical" // expires within 3 days
	StatusExpired  = "expired"
)

// Record is the entitlement payload bound to one machine. It is created
// once at redemption time and never mutated in place; re-activation produces
// a new record that supersedes the old one.
type Record struct {
	SalesKey           string    `json:"sales_key"`
	PlanID             string    `json:"plan_id"`
	PlanName           string    `json:"plan_name"`
	ExpiryDate         time.Time `json:"expiry_date"`
	MachineFingerprint string    `json:"machine_fingerprint"`
	LicenseType        string    `json:"license_type"`
	CreatedAt          time.Time `json:"created_at"`
	MaxDevices         int       `json:"max_devices"`
	Features           []string  `json:"features,omitempty"`
}

// HasFeature reports whether a capability flag is enabled on this license.
func (r *Record) HasFeature(name string) bool {
	for _, f := range r.Features {
		if f == name {
			return true
		}
	}
	return false
}

// DaysLeft returns whole days until expiry, negative once expired.
func (r *Record) DaysLeft(now time.Time) int {
	return int(r.ExpiryDate.Sub(now).Hours() / 24)
}

// RenewalStatus maps remaining validity to a status band.
func (r *Record) RenewalStatus(now time.Time) string {
	switch days := r.DaysLeft(now); {
	case now.After(r.ExpiryDate):
		return StatusExpired
	case days <= 3:
		return StatusCritical
	case days <= 14:
		return StatusWarning
	default:
		return StatusActive
	}
}

// ScratchCard is the offline-issued activation credential. It is read-only
// to this subsystem: the issuing authority owns redemption state.
type ScratchCard struct {
	CardCode       string     `json:"card_code"`
	DisplayCode    string     `json:"display_code"`
	PlanID         string     `json:"plan_id"`
	PlanName       string     `json:"plan_name"`
	PlanPrice      float64    `json:"plan_price"`
	DurationInDays int        `json:"duration_in_days"`
	MaxDevices     int        `json:"max_devices"`
	Features       []string   `json:"features,omitempty"`
	SoldBy         string     `json:"sold_by"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiryDate     time.Time  `json:"expiry_date"` // redemption deadline
	BatchNumber    string     `json:"batch_number"`
	Redeemed       bool       `json:"redeemed"`
	RedeemedAt     *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy     string     `json:"redeemed_by,omitempty"` // machine fingerprint
}

// PlanTerms is what a successful redemption returns.
type PlanTerms struct {
	PlanID         string   `json:"plan_id"`
	PlanName       string   `json:"plan_name"`
	DurationInDays int      `json:"duration_in_days"`
	MaxDevices     int      `json:"max_devices"`
	Features       []string `json:"features,omitempty"`
}

// CustomerProfile identifies the purchasing business.
type CustomerProfile struct {
	BusinessName string `json:"business_name" validate:"required"`
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	TaxNumber    string `json:"tax_number"`
}

// SystemProfile describes the activating machine.
type SystemProfile struct {
	MachineName        string `json:"machine_name"`
	OSName             string `json:"os_name"`
	Architecture       string `json:"architecture"`
	MachineFingerprint string `json:"machine_fingerprint"`
	ProcessorCount     int    `json:"processor_count"`
}

// SalesKeyInfo is the activation request payload sent when redeeming a
// card. Built once per attempt; never persisted beyond it except as the
// audit echo referenced by the resulting Record's SalesKey.
type SalesKeyInfo struct {
	AppID      string          `json:"app_id"`
	AppVersion string          `json:"app_version"`
	Customer   CustomerProfile `json:"customer"`
	System     SystemProfile   `json:"system"`
	CreatedAt  time.Time       `json:"created_at"`
}
