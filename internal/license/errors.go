package license

import "errors"

// Sentinel errors for the activation and verification paths. Transport
// layers map these to distinct response codes; callers branch with errors.Is.
var (
	// Credential errors — rejected before any cryptographic work
	ErrCardInvalidFormat = errors.New("scratch card code is not in the expected format")
	ErrCardNotFound      = errors.New("scratch card code not recognized by the issuing authority")
	ErrCardAlreadyUsed   = errors.New("scratch card has already been redeemed")
	ErrCardExpired       = errors.New("scratch card redemption deadline has passed")

	// Transport errors — issuing authority unreachable
	ErrNetworkUnavailable = errors.New("card issuing authority unreachable")

	// Binding errors — fail closed, no partial trust
	ErrMachineMismatch = errors.New("license is bound to a different machine")

	// Temporal errors
	ErrExpired = errors.New("license has expired")

	// Structural errors — undecodable persisted state requires re-onboarding
	ErrDecode = errors.New("license data failed integrity check")

	// No license present at all
	ErrNotActivated = errors.New("no license activated on this terminal")

	// Local throttle on repeated activation attempts
	ErrTooManyAttempts = errors.New("too many activation attempts, try again later")
)
