// Package testutil provides fixtures and log-capture helpers shared by
// package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"poscli/internal/license"
)

// TestCardCode is a well-formed normalized card code for fixtures.
const TestCardCode = "POSTESTCARD2345"

// ValidRecord returns a license record bound to the given fingerprint,
// expiring a year out.
func ValidRecord(fingerprint string) *license.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &license.Record{
		SalesKey:           TestCardCode,
		PlanID:             "retail-standard",
		PlanName:           "Retail Standard",
		ExpiryDate:         now.AddDate(1, 0, 0),
		MachineFingerprint: fingerprint,
		LicenseType:        license.TypeStandalone,
		CreatedAt:          now,
		MaxDevices:         1,
	}
}

// ExpiredRecord returns a record whose validity ended ten days ago.
func ExpiredRecord(fingerprint string) *license.Record {
	r := ValidRecord(fingerprint)
	r.ExpiryDate = time.Now().UTC().AddDate(0, 0, -10)
	return r
}

// HostRecord returns a host-type record with the given seat count.
func HostRecord(fingerprint string, maxDevices int) *license.Record {
	r := ValidRecord(fingerprint)
	r.PlanID = "retail-pro"
	r.PlanName = "Retail Pro"
	r.LicenseType = license.TypeHost
	r.MaxDevices = maxDevices
	return r
}

// UnredeemedCard returns a scratch card that is still valid for redemption.
func UnredeemedCard(code string) license.ScratchCard {
	now := time.Now().UTC()
	return license.ScratchCard{
		CardCode:       code,
		DisplayCode:    license.FormatCardDisplay(code),
		PlanID:         "retail-standard",
		PlanName:       "Retail Standard",
		DurationInDays: 365,
		MaxDevices:     1,
		SoldBy:         "test-vendor",
		CreatedAt:      now,
		ExpiryDate:     now.AddDate(1, 0, 0),
		BatchNumber:    "test-batch",
	}
}

// ProvisionedAuthority creates a file authority in a temp directory with the
// given cards already in its ledger.
func ProvisionedAuthority(t *testing.T, cards ...license.ScratchCard) *license.FileAuthority {
	t.Helper()

	authority := license.NewFileAuthority(filepath.Join(t.TempDir(), "cards.json"), nil)
	for _, card := range cards {
		if err := authority.AddCard(card); err != nil {
			t.Fatalf("failed to provision card %s: %v", card.CardCode, err)
		}
	}
	return authority
}
