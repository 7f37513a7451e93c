// Command cardgen provisions scratch cards into an offline card ledger.
// Vendors run it to mint a batch of single-use activation cards which are
// then printed and distributed; the terminal daemon redeems them through
// the same ledger file.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"poscli/internal/license"
)

// cardAlphabet excludes easily confused characters (0/O, 1/I/L).
const cardAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func main() {
	var (
		ledgerPath = flag.String("ledger", "cards.json", "card ledger file")
		count      = flag.Int("count", 1, "number of cards to mint")
		planID     = flag.String("plan", "retail-standard", "plan identifier")
		planName   = flag.String("plan-name", "Retail Standard", "plan display name")
		price      = flag.Float64("price", 0, "plan price")
		days       = flag.Int("days", 365, "license duration in days")
		maxDevices = flag.Int("devices", 1, "maximum POS devices for the plan")
		soldBy     = flag.String("sold-by", "", "vendor name")
		validFor   = flag.Duration("valid-for", 2*365*24*time.Hour, "redemption window")
		batch      = flag.String("batch", "", "batch number (generated when empty)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	authority := license.NewFileAuthority(*ledgerPath, logger)

	batchNumber := *batch
	if batchNumber == "" {
		batchNumber = uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	for i := 0; i < *count; i++ {
		code, err := mintCardCode()
		if err != nil {
			logger.Error("failed to mint card code", slog.String("error", err.Error()))
			os.Exit(1)
		}

		card := license.ScratchCard{
			CardCode:       code,
			DisplayCode:    license.FormatCardDisplay(code),
			PlanID:         *planID,
			PlanName:       *planName,
			PlanPrice:      *price,
			DurationInDays: *days,
			MaxDevices:     *maxDevices,
			SoldBy:         *soldBy,
			CreatedAt:      now,
			ExpiryDate:     now.Add(*validFor),
			BatchNumber:    batchNumber,
		}
		if err := authority.AddCard(card); err != nil {
			logger.Error("failed to add card to ledger", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(card.DisplayCode)
	}

	logger.Info("cards minted",
		slog.Int("count", *count),
		slog.String("batch", batchNumber),
		slog.String("ledger", *ledgerPath),
	)
}

// mintCardCode generates a normalized card code: the POS prefix plus twelve
// random characters from the unambiguous alphabet.
func mintCardCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, 0, 15)
	code = append(code, license.CardPrefix...)
	for _, b := range buf {
		code = append(code, cardAlphabet[int(b)%len(cardAlphabet)])
	}
	return string(code), nil
}
