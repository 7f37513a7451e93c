package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"poscli/internal/broker"
	"poscli/internal/license"
)

// Activator is the slice of the activation service the flow drives.
type Activator interface {
	Activate(ctx context.Context, cardCode string, customer license.CustomerProfile) (*license.Record, error)
	Verify(ctx context.Context) (*license.Record, error)
}

// TrustDialer is the client side of the host's trust API.
type TrustDialer interface {
	RequestToken(ctx context.Context, req broker.TokenRequest) (*broker.ConnectionToken, error)
	Validate(ctx context.Context, token, fingerprint string) error
}

// DialFunc builds a TrustDialer for a user-supplied host address.
type DialFunc func(hostAddr string) TrustDialer

// FingerprintSource produces this machine's fingerprint.
type FingerprintSource interface {
	GenerateID() (string, error)
}

// Flow is the onboarding state machine. One flow instance serves one setup
// session; the mutex keeps transitions coherent if the UI re-enters.
type Flow struct {
	activator    Activator
	dial         DialFunc
	fingerprints FingerprintSource
	store        *ConfigStore
	logger       *slog.Logger

	mu     sync.Mutex
	state  State
	reason error
}

// NewFlow creates a flow in the NoLicense state.
func NewFlow(activator Activator, dial DialFunc, fingerprints FingerprintSource, store *ConfigStore, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		activator:    activator,
		dial:         dial,
		fingerprints: fingerprints,
		store:        store,
		logger:       logger.With(slog.String("component", "onboarding")),
		state:        StateNoLicense,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// FailureReason returns the error that moved the flow into Failed, or nil.
func (f *Flow) FailureReason() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}

// Begin moves from NoLicense to ChoosingMode.
func (f *Flow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateNoLicense {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, f.state)
	}
	f.state = StateChoosingMode
	return nil
}

// Cancel abandons the current attempt and returns to NoLicense. Allowed from
// every state except Activated, including Failed so the operator can retry
// without restarting the process. No partial state survives: nothing was
// persisted before Activated.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateActivated {
		return fmt.Errorf("%w: cancel after activation", ErrInvalidTransition)
	}
	f.state = StateNoLicense
	f.reason = nil
	return nil
}

// ChooseStandalone activates this terminal with a scratch card and
// configures it as its own host. Scanned and manually typed codes converge
// to one value before activation is attempted. On success the flow is
// Activated and the connection config persisted; on failure the flow is
// Failed with the activation error as the reason.
func (f *Flow) ChooseStandalone(ctx context.Context, scanned, manual string, customer license.CustomerProfile) (*license.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateNoLicense && f.state != StateChoosingMode {
		return nil, fmt.Errorf("%w: activate from %s", ErrInvalidTransition, f.state)
	}

	code, err := ConvergeCardInput(scanned, manual)
	if err != nil {
		// Bad input is not a failed attempt; the flow stays where it is.
		return nil, err
	}

	f.state = StateActivatingStandalone
	f.logger.InfoContext(ctx, "standalone activation started")

	record, err := f.activator.Activate(ctx, code, customer)
	if err != nil {
		return nil, f.fail(ctx, "activation failed", err)
	}

	cfg := &ConnectionConfig{
		IsHost:       true,
		ConfiguredAt: time.Now().UTC(),
	}
	if err := f.store.Save(cfg); err != nil {
		return nil, f.fail(ctx, "failed to persist connection config", err)
	}

	f.state = StateActivated
	f.logger.InfoContext(ctx, "terminal activated",
		slog.String("mode", string(ModeHost)),
		slog.String("plan", record.PlanName),
		slog.Time("expires", record.ExpiryDate),
	)
	return record, nil
}

// ChooseJoinHost attaches this terminal to an existing host as a client. On
// success the token and host coordinates are persisted and the flow is
// Activated. Device-limit rejections and unreachable hosts move the flow to
// Failed with that reason, so the UI can distinguish "free a seat" from
// "check the network".
func (f *Flow) ChooseJoinHost(ctx context.Context, hostAddr, displayName, ipAddress string) (*broker.ConnectionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateNoLicense && f.state != StateChoosingMode {
		return nil, fmt.Errorf("%w: join host from %s", ErrInvalidTransition, f.state)
	}

	f.state = StateConnectingToHost
	f.logger.InfoContext(ctx, "joining host", slog.String("host", hostAddr))

	fingerprint, err := f.fingerprints.GenerateID()
	if err != nil {
		return nil, f.fail(ctx, "failed to fingerprint this terminal", err)
	}

	token, err := f.dial(hostAddr).RequestToken(ctx, broker.TokenRequest{
		ClientFingerprint: fingerprint,
		DisplayName:       displayName,
		IPAddress:         ipAddress,
	})
	if err != nil {
		return nil, f.fail(ctx, "host rejected connection", err)
	}

	cfg := &ConnectionConfig{
		IsClient:     true,
		HostIP:       token.HostIP,
		DatabasePath: token.DatabasePath,
		Token:        token,
		ConfiguredAt: time.Now().UTC(),
	}
	if err := f.store.Save(cfg); err != nil {
		return nil, f.fail(ctx, "failed to persist connection config", err)
	}

	f.state = StateActivated
	f.logger.InfoContext(ctx, "terminal activated",
		slog.String("mode", string(ModeClient)),
		slog.String("host", token.HostName),
		slog.Time("token_expires", token.ExpiresAt),
	)
	return token, nil
}

// fail records the reason, moves to Failed and returns the error. Must be
// called with the lock held.
func (f *Flow) fail(ctx context.Context, msg string, err error) error {
	f.state = StateFailed
	f.reason = err
	f.logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
	return err
}

// Unlock is the launch-time gate: it re-checks entitlement from persisted
// state instead of trusting that onboarding once succeeded. Host and
// standalone installations re-verify the license locally; clients present
// their token to the host. ErrNotConfigured means onboarding must run.
func (f *Flow) Unlock(ctx context.Context) (*ConnectionConfig, error) {
	cfg, err := f.store.Load()
	if err != nil {
		return nil, err
	}

	if cfg.IsHost {
		if _, err := f.activator.Verify(ctx); err != nil {
			return nil, err
		}
	} else {
		if cfg.Token == nil {
			return nil, fmt.Errorf("%w: client config has no token", ErrCorruptState)
		}
		fingerprint, err := f.fingerprints.GenerateID()
		if err != nil {
			return nil, err
		}
		if err := f.dial(cfg.HostIP).Validate(ctx, cfg.Token.Token, fingerprint); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.state = StateActivated
	f.mu.Unlock()
	return cfg, nil
}
