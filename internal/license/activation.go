package license

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"poscli/internal/config"
	"poscli/internal/security"
)

// Application identity embedded in every activation request.
const (
	AppID      = "poscli"
	AppVersion = "1.4.0"
)

// ActivationService redeems scratch cards into machine-bound licenses and
// re-verifies them locally on every launch. Verification never touches the
// network; redemption talks to the CardAuthority with a bounded timeout so
// onboarding cannot stall indefinitely.
type ActivationService struct {
	codec        *Codec
	store        *Store
	authority    CardAuthority
	fingerprints *security.FingerprintManager
	limiter      *rate.Limiter
	timeout      time.Duration
	logger       *slog.Logger
}

// StatusReport summarizes the current license for the UI collaborator.
type StatusReport struct {
	Activated  bool    `json:"activated"`
	Status     string  `json:"status"`
	DaysLeft   int     `json:"days_left"`
	PlanName   string  `json:"plan_name,omitempty"`
	MaxDevices int     `json:"max_devices,omitempty"`
	Record     *Record `json:"record,omitempty"`
}

// NewActivationService wires the activation path.
func NewActivationService(
	codec *Codec,
	store *Store,
	authority CardAuthority,
	fingerprints *security.FingerprintManager,
	cfg config.LicenseConfig,
	logger *slog.Logger,
) *ActivationService {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.ActivationRPS
	if rps <= 0 {
		rps = 0.2
	}
	burst := cfg.ActivationBurst
	if burst <= 0 {
		burst = 3
	}
	timeout := cfg.AuthorityTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ActivationService{
		codec:        codec,
		store:        store,
		authority:    authority,
		fingerprints: fingerprints,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		timeout:      timeout,
		logger:       logger.With(slog.String("component", "activation")),
	}
}

// Activate redeems a scratch card for this machine.
//
// Re-running activation with the card that produced the current license on
// the same machine is idempotent: the existing record is returned and the
// card is not consumed a second time. Redeeming an already-used card from a
// different machine fails with ErrCardAlreadyUsed at the authority.
func (s *ActivationService) Activate(ctx context.Context, cardCode string, customer CustomerProfile) (*Record, error) {
	code := NormalizeCardCode(cardCode)
	if err := ValidateCardFormat(code); err != nil {
		return nil, err
	}

	if !s.limiter.Allow() {
		s.logger.Warn("activation throttled", slog.String("card", FormatCardDisplay(code)))
		return nil, ErrTooManyAttempts
	}

	fingerprint, err := s.fingerprints.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint this machine: %w", err)
	}

	// Idempotency: the same card on the same machine returns the record it
	// already produced instead of double-consuming the card.
	if existing, err := s.store.Load(); err == nil {
		if existing.SalesKey == code && existing.MachineFingerprint == fingerprint {
			s.logger.Info("activation already completed with this card",
				slog.String("card", FormatCardDisplay(code)),
				slog.String("plan_id", existing.PlanID),
			)
			return existing, nil
		}
	}

	info := s.buildSalesKeyInfo(customer, fingerprint)

	redeemCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	terms, err := s.authority.Redeem(redeemCtx, code, info)
	if err != nil {
		s.logger.Warn("card redemption failed",
			slog.String("card", FormatCardDisplay(code)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// Times are stored in UTC at second precision so the record compares
	// equal after an encode/decode round trip.
	now := time.Now().UTC().Truncate(time.Second)
	licenseType := TypeStandalone
	if terms.MaxDevices > 1 {
		licenseType = TypeHost
	}

	record := &Record{
		SalesKey:           code,
		PlanID:             terms.PlanID,
		PlanName:           terms.PlanName,
		ExpiryDate:         now.AddDate(0, 0, terms.DurationInDays),
		MachineFingerprint: fingerprint,
		LicenseType:        licenseType,
		CreatedAt:          now,
		MaxDevices:         terms.MaxDevices,
		Features:           terms.Features,
	}

	if err := s.store.Save(record); err != nil {
		return nil, fmt.Errorf("failed to persist license: %w", err)
	}

	s.logger.Info("license activated",
		slog.String("card", FormatCardDisplay(code)),
		slog.String("plan_id", record.PlanID),
		slog.String("license_type", record.LicenseType),
		slog.Time("expiry_date", record.ExpiryDate),
		slog.Int("max_devices", record.MaxDevices),
	)

	return record, nil
}

// Verify re-validates the persisted license: decode, fingerprint match,
// expiry, sales-key audit cross-check. Pure local computation.
func (s *ActivationService) Verify(ctx context.Context) (*Record, error) {
	record, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return s.verifyRecord(record)
}

// VerifyEncoded validates a license string supplied by the operator, e.g.
// as proof of possession during password recovery.
func (s *ActivationService) VerifyEncoded(ctx context.Context, encoded string) (*Record, error) {
	record, err := s.codec.Decode(encoded)
	if err != nil {
		return nil, err
	}
	return s.verifyRecord(record)
}

// verifyRecord applies the binding, temporal and audit checks in order.
// Binding failures are checked first and fail closed regardless of expiry.
func (s *ActivationService) verifyRecord(record *Record) (*Record, error) {
	fingerprint, err := s.fingerprints.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint this machine: %w", err)
	}

	if record.MachineFingerprint != fingerprint {
		s.logger.Warn("license fingerprint mismatch",
			slog.String("license_fingerprint", record.MachineFingerprint),
			slog.String("machine_fingerprint", fingerprint),
		)
		return nil, ErrMachineMismatch
	}

	if time.Now().After(record.ExpiryDate) {
		return nil, fmt.Errorf("%w: expired %s", ErrExpired, record.ExpiryDate.Format(time.RFC3339))
	}

	if marker, err := s.store.SalesKeyMarker(); err == nil && marker != "" && marker != record.SalesKey {
		return nil, fmt.Errorf("%w: license does not originate from this installation's sales key", ErrMachineMismatch)
	}

	return record, nil
}

// Status reports the license state without failing on an invalid license;
// the UI decides what to show from the status band.
func (s *ActivationService) Status(ctx context.Context) *StatusReport {
	record, err := s.Verify(ctx)
	if err != nil {
		report := &StatusReport{Activated: false}
		if r, loadErr := s.store.Load(); loadErr == nil {
			report.Status = r.RenewalStatus(time.Now())
			report.DaysLeft = r.DaysLeft(time.Now())
			report.PlanName = r.PlanName
		}
		return report
	}

	now := time.Now()
	return &StatusReport{
		Activated:  true,
		Status:     record.RenewalStatus(now),
		DaysLeft:   record.DaysLeft(now),
		PlanName:   record.PlanName,
		MaxDevices: record.MaxDevices,
		Record:     record,
	}
}

// buildSalesKeyInfo assembles the activation request payload.
func (s *ActivationService) buildSalesKeyInfo(customer CustomerProfile, fingerprint string) SalesKeyInfo {
	hostname, _ := os.Hostname()
	return SalesKeyInfo{
		AppID:      AppID,
		AppVersion: AppVersion,
		Customer:   customer,
		System: SystemProfile{
			MachineName:        hostname,
			OSName:             runtime.GOOS,
			Architecture:       runtime.GOARCH,
			MachineFingerprint: fingerprint,
			ProcessorCount:     runtime.NumCPU(),
		},
		CreatedAt: time.Now(),
	}
}
