package license

import (
	"fmt"
	"strings"
)

// Scratch card code format: POS-XXXX-XXXX-XXXX when displayed,
// POSXXXXXXXXXXXX normalized (15 characters, uppercase alphanumeric).
const (
	CardPrefix           = "POS"
	normalizedCardLength = 15
)

// NormalizeCardCode converts scanned or typed input to the canonical form.
// Scanner output and manual entry differ only in dashes, spaces and case, so
// both converge here before any comparison or submission.
func NormalizeCardCode(code string) string {
	clean := strings.ReplaceAll(strings.ReplaceAll(code, "-", ""), " ", "")
	return strings.ToUpper(strings.TrimSpace(clean))
}

// ValidateCardFormat checks the normalized card code shape.
func ValidateCardFormat(code string) error {
	clean := NormalizeCardCode(code)

	if !strings.HasPrefix(clean, CardPrefix) {
		return fmt.Errorf("%w: code must start with %q", ErrCardInvalidFormat, CardPrefix)
	}
	if len(clean) != normalizedCardLength {
		return fmt.Errorf("%w: code must be %d characters long", ErrCardInvalidFormat, normalizedCardLength)
	}
	for _, char := range clean[len(CardPrefix):] {
		if !((char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9')) {
			return fmt.Errorf("%w: code must contain only letters and digits", ErrCardInvalidFormat)
		}
	}
	return nil
}

// FormatCardDisplay formats a card code with dashes for display and print.
func FormatCardDisplay(code string) string {
	clean := NormalizeCardCode(code)
	if len(clean) != normalizedCardLength {
		return clean
	}
	return fmt.Sprintf("%s-%s-%s-%s", clean[:3], clean[3:7], clean[7:11], clean[11:15])
}
