package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"poscli/internal/config"
	"poscli/internal/license"
)

// LicenseProvider supplies the host's own license. The broker re-verifies
// it on every token request rather than caching an "is valid" flag.
type LicenseProvider interface {
	Verify(ctx context.Context) (*license.Record, error)
}

// tokenIssue records the binding and lifetime of an issued token.
type tokenIssue struct {
	Fingerprint string
	ExpiresAt   time.Time
}

// TrustBroker runs on the host terminal. All bookkeeping lives in memory
// under one mutex; clients re-request tokens on reconnect, so the table
// rebuilds itself after a host restart.
type TrustBroker struct {
	licenses LicenseProvider
	host     HostInfo
	cfg      config.TrustConfig
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	clients map[string]*ConnectedClient
	tokens  map[string]tokenIssue
	now     func() time.Time
}

// New creates a trust broker for the given host.
func New(licenses LicenseProvider, host HostInfo, cfg config.TrustConfig, logger *slog.Logger, metrics *Metrics) *TrustBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustBroker{
		licenses: licenses,
		host:     host,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "trust_broker")),
		metrics:  metrics,
		clients:  make(map[string]*ConnectedClient),
		tokens:   make(map[string]tokenIssue),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Host returns the share descriptor this broker hands to attached clients.
func (b *TrustBroker) Host() HostInfo {
	return b.host
}

// RequestToken attaches a client terminal to this host. The host license
// check, the active-client count and the insert/reactivate execute as one
// atomic unit under the table lock: two simultaneous requests can never
// both observe the same free slot.
func (b *TrustBroker) RequestToken(ctx context.Context, req TokenRequest) (*ConnectionToken, error) {
	if req.ClientFingerprint == "" {
		return nil, fmt.Errorf("%w: missing client fingerprint", ErrUnknownClient)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	record, err := b.licenses.Verify(ctx)
	if err != nil {
		b.metrics.Rejected(ctx, "host_license_invalid")
		b.logger.Warn("token request rejected, host license invalid",
			slog.String("client", req.DisplayName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrHostLicenseInvalid, err)
	}

	now := b.now()
	b.sweepLocked(now)

	existing := b.clients[req.ClientFingerprint]

	// Count seats taken by other active clients; a returning terminal
	// reclaims its own row without consuming a second seat.
	active := 0
	for fp, c := range b.clients {
		if c.IsActive && fp != req.ClientFingerprint {
			active++
		}
	}
	if active >= record.MaxDevices {
		b.metrics.Rejected(ctx, "device_limit")
		b.logger.Warn("token request rejected, device limit reached",
			slog.String("client", req.DisplayName),
			slog.String("fingerprint", req.ClientFingerprint),
			slog.Int("max_devices", record.MaxDevices),
		)
		return nil, fmt.Errorf("%w: %d of %d seats in use", ErrDeviceLimitExceeded, active, record.MaxDevices)
	}

	token := &ConnectionToken{
		Token:             uuid.NewString(),
		HostIP:            b.host.HostIP,
		HostName:          b.host.HostName,
		DatabasePath:      b.host.DatabasePath,
		DatabaseShareName: b.host.DatabaseShareName,
		IssuedAt:          now,
		ExpiresAt:         now.Add(b.cfg.TokenTTL),
		ClientFingerprint: req.ClientFingerprint,
		PlanID:            record.PlanID,
		MaxPOSDevices:     record.MaxDevices,
	}

	if existing != nil {
		// Reactivate the known terminal and retire its previous token.
		delete(b.tokens, existing.Token)
		existing.DisplayName = req.DisplayName
		existing.IPAddress = req.IPAddress
		existing.Token = token.Token
		existing.LastSeenAt = now
		existing.IsActive = true
	} else {
		b.clients[req.ClientFingerprint] = &ConnectedClient{
			Fingerprint: req.ClientFingerprint,
			DisplayName: req.DisplayName,
			IPAddress:   req.IPAddress,
			Token:       token.Token,
			ConnectedAt: now,
			LastSeenAt:  now,
			IsActive:    true,
		}
	}
	b.tokens[token.Token] = tokenIssue{
		Fingerprint: req.ClientFingerprint,
		ExpiresAt:   token.ExpiresAt,
	}

	b.metrics.Issued(ctx)
	b.logger.Info("connection token issued",
		slog.String("client", req.DisplayName),
		slog.String("fingerprint", req.ClientFingerprint),
		slog.Time("expires_at", token.ExpiresAt),
		slog.Int("active_clients", active+1),
		slog.Int("max_devices", record.MaxDevices),
	)

	return token, nil
}

// Heartbeat refreshes a client's liveness. Clients not seen within the
// staleness window are treated as disconnected and their seat reclaimed by
// the reaper without waiting for an explicit disconnect.
func (b *TrustBroker) Heartbeat(ctx context.Context, fingerprint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	client, ok := b.clients[fingerprint]
	if !ok || !client.IsActive {
		return ErrUnknownClient
	}

	client.LastSeenAt = b.now()
	b.metrics.Heartbeat(ctx)
	return nil
}

// Revoke immediately frees the seat held by a client.
func (b *TrustBroker) Revoke(ctx context.Context, fingerprint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	client, ok := b.clients[fingerprint]
	if !ok {
		return ErrUnknownClient
	}

	client.IsActive = false
	b.logger.Info("client revoked",
		slog.String("client", client.DisplayName),
		slog.String("fingerprint", fingerprint),
	)
	return nil
}

// Validate decides whether a (token, fingerprint) pair may use the shared
// store. The shared-store gate calls this on every connection attempt, not
// just at configuration time. Binding is checked before expiry: a token
// presented by the wrong machine always fails as a mismatch.
func (b *TrustBroker) Validate(ctx context.Context, token, fingerprint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	issue, ok := b.tokens[token]
	if !ok {
		return ErrUnknownToken
	}
	client := b.clients[issue.Fingerprint]
	if client == nil || !client.IsActive || client.Token != token {
		return ErrUnknownToken
	}

	if issue.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}

	if b.now().After(issue.ExpiresAt) {
		return ErrTokenExpired
	}

	return nil
}

// Clients returns a snapshot of the bookkeeping table for status surfaces.
func (b *TrustBroker) Clients(ctx context.Context) []ConnectedClient {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ConnectedClient, 0, len(b.clients))
	for _, c := range b.clients {
		out = append(out, *c)
	}
	return out
}

// ActiveCount returns the number of currently attached clients.
func (b *TrustBroker) ActiveCount(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	active := 0
	for _, c := range b.clients {
		if c.IsActive {
			active++
		}
	}
	return active
}

// Sweep deactivates clients whose last heartbeat is older than the
// staleness window.
func (b *TrustBroker) Sweep(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sweepLocked(b.now())
}

// sweepLocked must be called with the table lock held.
func (b *TrustBroker) sweepLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.StalenessWindow)
	for _, c := range b.clients {
		if c.IsActive && c.LastSeenAt.Before(cutoff) {
			c.IsActive = false
			b.logger.Info("client timed out, seat reclaimed",
				slog.String("client", c.DisplayName),
				slog.String("fingerprint", c.Fingerprint),
				slog.Time("last_seen_at", c.LastSeenAt),
			)
		}
	}
}

// RunReaper periodically sweeps stale clients until the context ends.
func (b *TrustBroker) RunReaper(ctx context.Context) {
	interval := b.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep(ctx)
		}
	}
}
