package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poscli/internal/config"
	"poscli/internal/license"
	"poscli/internal/shared/testutil"
)

// stubLicenses is a LicenseProvider with a fixed answer.
type stubLicenses struct {
	record *license.Record
	err    error
}

func (s *stubLicenses) Verify(ctx context.Context) (*license.Record, error) {
	return s.record, s.err
}

func hostLicense(maxDevices int) *stubLicenses {
	return &stubLicenses{record: testutil.HostRecord("host-fp", maxDevices)}
}

func testTrustConfig() config.TrustConfig {
	return config.TrustConfig{
		TokenTTL:          time.Hour,
		HeartbeatInterval: 30 * time.Second,
		StalenessWindow:   90 * time.Second,
		SweepInterval:     30 * time.Second,
	}
}

func testHostInfo() HostInfo {
	return HostInfo{
		HostName:          "front-desk",
		HostIP:            "192.168.1.10",
		DatabasePath:      `\\front-desk\posdata\pos.db`,
		DatabaseShareName: "posdata",
	}
}

func newTestBroker(t *testing.T, maxDevices int) *TrustBroker {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return New(hostLicense(maxDevices), testHostInfo(), testTrustConfig(), logger, nil)
}

func tokenRequest(n int) TokenRequest {
	return TokenRequest{
		ClientFingerprint: fmt.Sprintf("client-fp-%d", n),
		DisplayName:       fmt.Sprintf("register-%d", n),
		IPAddress:         fmt.Sprintf("192.168.1.%d", 20+n),
	}
}

func TestRequestTokenIssuesBoundToken(t *testing.T) {
	b := newTestBroker(t, 2)

	token, err := b.RequestToken(context.Background(), tokenRequest(1))
	require.NoError(t, err)

	assert.NotEmpty(t, token.Token)
	assert.Equal(t, "client-fp-1", token.ClientFingerprint)
	assert.Equal(t, "192.168.1.10", token.HostIP)
	assert.Equal(t, "posdata", token.DatabaseShareName)
	assert.Equal(t, "retail-pro", token.PlanID)
	assert.Equal(t, 2, token.MaxPOSDevices)
	assert.True(t, token.ExpiresAt.After(token.IssuedAt))

	assert.Equal(t, 1, b.ActiveCount(context.Background()))
}

func TestRequestTokenQuotaSequential(t *testing.T) {
	b := newTestBroker(t, 2)
	ctx := context.Background()

	_, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)
	_, err = b.RequestToken(ctx, tokenRequest(2))
	require.NoError(t, err)

	// Third terminal: quota reached.
	_, err = b.RequestToken(ctx, tokenRequest(3))
	assert.ErrorIs(t, err, ErrDeviceLimitExceeded)

	// Freeing one seat admits the next terminal.
	require.NoError(t, b.Revoke(ctx, "client-fp-1"))
	_, err = b.RequestToken(ctx, tokenRequest(3))
	require.NoError(t, err)
	assert.Equal(t, 2, b.ActiveCount(ctx))
}

func TestRequestTokenQuotaConcurrent(t *testing.T) {
	b := newTestBroker(t, 2)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := b.RequestToken(ctx, tokenRequest(n))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, limited := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrDeviceLimitExceeded)
			limited++
		}
	}

	// Exactly the quota succeeds; the check-count-then-insert sequence
	// never overshoots under contention.
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 8, limited)
	assert.Equal(t, 2, b.ActiveCount(ctx))
}

func TestRequestTokenHostLicenseInvalid(t *testing.T) {
	b := New(&stubLicenses{err: license.ErrExpired}, HostInfo{}, testTrustConfig(), slog.Default(), nil)

	_, err := b.RequestToken(context.Background(), tokenRequest(1))
	assert.ErrorIs(t, err, ErrHostLicenseInvalid)
}

func TestRequestTokenReissueKeepsOneSeat(t *testing.T) {
	b := newTestBroker(t, 1)
	ctx := context.Background()

	first, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)

	// The same terminal asking again gets a fresh token, not a second seat.
	second, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, 1, b.ActiveCount(ctx))

	// The retired token no longer validates.
	assert.ErrorIs(t, b.Validate(ctx, first.Token, "client-fp-1"), ErrUnknownToken)
	assert.NoError(t, b.Validate(ctx, second.Token, "client-fp-1"))
}

func TestRequestTokenRejectsEmptyFingerprint(t *testing.T) {
	b := newTestBroker(t, 2)

	_, err := b.RequestToken(context.Background(), TokenRequest{DisplayName: "register"})
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestHeartbeat(t *testing.T) {
	b := newTestBroker(t, 2)
	ctx := context.Background()

	_, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)

	require.NoError(t, b.Heartbeat(ctx, "client-fp-1"))
	assert.ErrorIs(t, b.Heartbeat(ctx, "never-seen"), ErrUnknownClient)

	// A revoked client must re-request a token; its heartbeats are unknown.
	require.NoError(t, b.Revoke(ctx, "client-fp-1"))
	assert.ErrorIs(t, b.Heartbeat(ctx, "client-fp-1"), ErrUnknownClient)
}

func TestRevokeUnknown(t *testing.T) {
	b := newTestBroker(t, 2)
	assert.ErrorIs(t, b.Revoke(context.Background(), "nobody"), ErrUnknownClient)
}

func TestValidate(t *testing.T) {
	b := newTestBroker(t, 2)
	ctx := context.Background()

	token, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)

	assert.NoError(t, b.Validate(ctx, token.Token, "client-fp-1"))
	assert.ErrorIs(t, b.Validate(ctx, token.Token, "client-fp-2"), ErrFingerprintMismatch)
	assert.ErrorIs(t, b.Validate(ctx, "no-such-token", "client-fp-1"), ErrUnknownToken)

	require.NoError(t, b.Revoke(ctx, "client-fp-1"))
	assert.ErrorIs(t, b.Validate(ctx, token.Token, "client-fp-1"), ErrUnknownToken)
}

func TestValidateExpiredToken(t *testing.T) {
	b := newTestBroker(t, 2)
	ctx := context.Background()

	token, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)

	// Jump past the token TTL. Heartbeats keep the seat alive, but the
	// token's lifetime is anchored at issue.
	b.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	// Expiry wins even with the right fingerprint.
	assert.ErrorIs(t, b.Validate(ctx, token.Token, "client-fp-1"), ErrTokenExpired)
	// The wrong fingerprint still reports the binding error first.
	assert.ErrorIs(t, b.Validate(ctx, token.Token, "client-fp-2"), ErrFingerprintMismatch)
}

func TestSweepReclaimsStaleSeats(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	b := New(hostLicense(2), testHostInfo(), testTrustConfig(), logger, nil)
	ctx := context.Background()

	_, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)
	_, err = b.RequestToken(ctx, tokenRequest(2))
	require.NoError(t, err)

	// Client 1 goes silent; client 2 keeps heartbeating.
	b.now = func() time.Time { return time.Now().UTC().Add(60 * time.Second) }
	require.NoError(t, b.Heartbeat(ctx, "client-fp-2"))

	b.now = func() time.Time { return time.Now().UTC().Add(120 * time.Second) }
	b.Sweep(ctx)

	assert.Equal(t, 1, b.ActiveCount(ctx))
	assert.True(t, logs.ContainsMessage("seat reclaimed"))
	assert.True(t, logs.ContainsAttr("fingerprint", "client-fp-1"))

	// The reclaimed seat is available to a new terminal.
	_, err = b.RequestToken(ctx, tokenRequest(3))
	require.NoError(t, err)
}

func TestClientsSnapshotKeepsHistory(t *testing.T) {
	b := newTestBroker(t, 2)
	ctx := context.Background()

	_, err := b.RequestToken(ctx, tokenRequest(1))
	require.NoError(t, err)
	require.NoError(t, b.Revoke(ctx, "client-fp-1"))

	// Revocation deactivates but never deletes: the row stays for audit.
	clients := b.Clients(ctx)
	require.Len(t, clients, 1)
	assert.False(t, clients[0].IsActive)
	assert.Equal(t, "register-1", clients[0].DisplayName)
}
