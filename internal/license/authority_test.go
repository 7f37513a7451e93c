package license

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthority(t *testing.T) *FileAuthority {
	t.Helper()
	return NewFileAuthority(filepath.Join(t.TempDir(), "cards.json"), slog.Default())
}

func provisionCard(t *testing.T, authority *FileAuthority, code string) {
	t.Helper()
	require.NoError(t, authority.AddCard(ScratchCard{
		CardCode:       code,
		PlanID:         "retail-pro",
		PlanName:       "Retail Pro",
		PlanPrice:      99,
		DurationInDays: 365,
		MaxDevices:     2,
		Features:       []string{"stock"},
		SoldBy:         "vendor-14",
		CreatedAt:      time.Now().AddDate(0, -1, 0),
		ExpiryDate:     time.Now().AddDate(0, 6, 0),
		BatchNumber:    "B-2026-03",
	}))
}

func testSalesKeyInfo(fingerprint string) SalesKeyInfo {
	return SalesKeyInfo{
		AppID:      AppID,
		AppVersion: AppVersion,
		Customer:   CustomerProfile{BusinessName: "Corner Market"},
		System:     SystemProfile{MachineFingerprint: fingerprint},
		CreatedAt:  time.Now(),
	}
}

func TestFileAuthorityRedeem(t *testing.T) {
	authority := newTestAuthority(t)
	provisionCard(t, authority, "POS1M234567890A")

	terms, err := authority.Redeem(context.Background(), "pos-1m23-4567-890a", testSalesKeyInfo("fp-1"))
	require.NoError(t, err)

	assert.Equal(t, "retail-pro", terms.PlanID)
	assert.Equal(t, 365, terms.DurationInDays)
	assert.Equal(t, 2, terms.MaxDevices)

	// Redemption state is recorded on the card.
	card, err := authority.Peek(context.Background(), "POS1M234567890A")
	require.NoError(t, err)
	assert.True(t, card.Redeemed)
	assert.Equal(t, "fp-1", card.RedeemedBy)
	require.NotNil(t, card.RedeemedAt)
}

func TestFileAuthorityEnforcesSingleUse(t *testing.T) {
	authority := newTestAuthority(t)
	provisionCard(t, authority, "POS1M234567890A")

	_, err := authority.Redeem(context.Background(), "POS1M234567890A", testSalesKeyInfo("machine-one"))
	require.NoError(t, err)

	// Second redemption, different machine: rejected.
	_, err = authority.Redeem(context.Background(), "POS1M234567890A", testSalesKeyInfo("machine-two"))
	assert.ErrorIs(t, err, ErrCardAlreadyUsed)
}

func TestFileAuthorityUnknownCard(t *testing.T) {
	authority := newTestAuthority(t)

	_, err := authority.Redeem(context.Background(), "POS1M234567890A", testSalesKeyInfo("fp"))
	assert.ErrorIs(t, err, ErrCardNotFound)

	_, err = authority.Peek(context.Background(), "POS1M234567890A")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestFileAuthorityExpiredCard(t *testing.T) {
	authority := newTestAuthority(t)
	require.NoError(t, authority.AddCard(ScratchCard{
		CardCode:       "POSEXP111122223",
		PlanID:         "retail-pro",
		DurationInDays: 365,
		ExpiryDate:     time.Now().AddDate(0, 0, -1),
	}))

	_, err := authority.Redeem(context.Background(), "POSEXP111122223", testSalesKeyInfo("fp"))
	assert.ErrorIs(t, err, ErrCardExpired)

	// An expired card is not consumed.
	card, err := authority.Peek(context.Background(), "POSEXP111122223")
	require.NoError(t, err)
	assert.False(t, card.Redeemed)
}

func TestFileAuthorityRespectsContext(t *testing.T) {
	authority := newTestAuthority(t)
	provisionCard(t, authority, "POS1M234567890A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := authority.Redeem(ctx, "POS1M234567890A", testSalesKeyInfo("fp"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileAuthorityPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")

	first := NewFileAuthority(path, slog.Default())
	require.NoError(t, first.AddCard(ScratchCard{
		CardCode:       "POS1M234567890A",
		PlanID:         "retail-pro",
		DurationInDays: 90,
	}))
	_, err := first.Redeem(context.Background(), "POS1M234567890A", testSalesKeyInfo("fp-1"))
	require.NoError(t, err)

	// A fresh instance over the same ledger still sees the card as used.
	second := NewFileAuthority(path, slog.Default())
	_, err = second.Redeem(context.Background(), "POS1M234567890A", testSalesKeyInfo("fp-2"))
	assert.ErrorIs(t, err, ErrCardAlreadyUsed)
}
