package onboarding

import "errors"

var (
	// ErrInvalidTransition reports an operation called from the wrong state.
	ErrInvalidTransition = errors.New("operation not allowed in current onboarding state")

	// ErrNotConfigured means no connection config exists yet; the terminal
	// has never completed onboarding.
	ErrNotConfigured = errors.New("terminal is not configured")

	// ErrCorruptState means persisted connection state could not be decoded
	// at all. The only recovery is full re-onboarding; the unreadable file is
	// never patched in place.
	ErrCorruptState = errors.New("persisted connection state is unreadable")

	// ErrNoCardCode means neither scanned nor manual card input produced a
	// code.
	ErrNoCardCode = errors.New("no card code provided")

	// ErrCardInputConflict means scanned and manual input disagree after
	// normalization.
	ErrCardInputConflict = errors.New("scanned and typed card codes do not match")
)
