package onboarding

import (
	"poscli/internal/license"
)

// ConvergeCardInput merges the two credential input paths (barcode scan and
// manual typing) into one normalized card code. When both are present they
// must agree after normalization; activation is only ever attempted with a
// single converged value.
func ConvergeCardInput(scanned, manual string) (string, error) {
	s := license.NormalizeCardCode(scanned)
	m := license.NormalizeCardCode(manual)

	switch {
	case s == "" && m == "":
		return "", ErrNoCardCode
	case s == "":
		return m, nil
	case m == "":
		return s, nil
	case s != m:
		return "", ErrCardInputConflict
	default:
		return s, nil
	}
}
