package license

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// CardAuthority is the issuing authority for scratch cards. It owns
// redemption state and enforces single use: once a card is redeemed the
// authority rejects every later attempt, whichever machine makes it.
//
// The POS deployment ships the file-backed implementation below. A remote
// authority satisfies the same interface; its transport failures should be
// reported by wrapping ErrNetworkUnavailable.
type CardAuthority interface {
	// Redeem consumes a card and returns its plan terms. The normalized
	// card code and the full activation payload (customer + system profile)
	// are recorded for audit.
	Redeem(ctx context.Context, cardCode string, info SalesKeyInfo) (*PlanTerms, error)

	// Peek looks a card up without consuming it.
	Peek(ctx context.Context, cardCode string) (*ScratchCard, error)
}

// FileAuthority is a card ledger persisted as a local JSON file. It backs
// offline deployments where cards are provisioned onto the terminal along
// with the installer.
type FileAuthority struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// ledger is the on-disk shape of the card file.
type ledger struct {
	Cards []ScratchCard `json:"cards"`
}

// NewFileAuthority creates a file-backed card authority.
func NewFileAuthority(path string, logger *slog.Logger) *FileAuthority {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileAuthority{
		path:   path,
		logger: logger.With(slog.String("component", "card_authority")),
	}
}

// Redeem implements CardAuthority. Lookup, single-use check, card expiry
// check and the redemption write happen under one lock so two concurrent
// redemptions cannot both consume the same card.
func (a *FileAuthority) Redeem(ctx context.Context, cardCode string, info SalesKeyInfo) (*PlanTerms, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	led, err := a.load()
	if err != nil {
		return nil, err
	}

	code := NormalizeCardCode(cardCode)
	idx := -1
	for i := range led.Cards {
		if NormalizeCardCode(led.Cards[i].CardCode) == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, FormatCardDisplay(code))
	}

	card := &led.Cards[idx]
	now := time.Now()

	if card.Redeemed {
		a.logger.Warn("redemption rejected, card already used",
			slog.String("card", card.DisplayCode),
			slog.String("redeemed_by", card.RedeemedBy),
		)
		return nil, fmt.Errorf("%w: %s", ErrCardAlreadyUsed, card.DisplayCode)
	}
	if !card.ExpiryDate.IsZero() && now.After(card.ExpiryDate) {
		return nil, fmt.Errorf("%w: %s", ErrCardExpired, card.DisplayCode)
	}

	card.Redeemed = true
	card.RedeemedAt = &now
	card.RedeemedBy = info.System.MachineFingerprint

	if err := a.save(led); err != nil {
		return nil, err
	}

	a.logger.Info("scratch card redeemed",
		slog.String("card", card.DisplayCode),
		slog.String("plan_id", card.PlanID),
		slog.String("fingerprint", info.System.MachineFingerprint),
		slog.String("business", info.Customer.BusinessName),
	)

	return &PlanTerms{
		PlanID:         card.PlanID,
		PlanName:       card.PlanName,
		DurationInDays: card.DurationInDays,
		MaxDevices:     card.MaxDevices,
		Features:       card.Features,
	}, nil
}

// Peek implements CardAuthority.
func (a *FileAuthority) Peek(ctx context.Context, cardCode string) (*ScratchCard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	led, err := a.load()
	if err != nil {
		return nil, err
	}

	code := NormalizeCardCode(cardCode)
	for i := range led.Cards {
		if NormalizeCardCode(led.Cards[i].CardCode) == code {
			card := led.Cards[i]
			return &card, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCardNotFound, FormatCardDisplay(code))
}

// AddCard provisions a card into the ledger. Used by vendor tooling and tests.
func (a *FileAuthority) AddCard(card ScratchCard) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	led, err := a.load()
	if err != nil {
		return err
	}
	if card.DisplayCode == "" {
		card.DisplayCode = FormatCardDisplay(card.CardCode)
	}
	led.Cards = append(led.Cards, card)
	return a.save(led)
}

// load reads the ledger; a missing file is an empty ledger.
func (a *FileAuthority) load() (*ledger, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return &ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read card ledger: %v", ErrNetworkUnavailable, err)
	}

	var led ledger
	if err := json.Unmarshal(data, &led); err != nil {
		return nil, fmt.Errorf("%w: card ledger is corrupt: %v", ErrNetworkUnavailable, err)
	}
	return &led, nil
}

// save writes the ledger with restricted permissions.
func (a *FileAuthority) save(led *ledger) error {
	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal card ledger: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0600); err != nil {
		return fmt.Errorf("%w: failed to write card ledger: %v", ErrNetworkUnavailable, err)
	}
	return nil
}
