package broker

import "errors"

// Sentinel errors for token issuance and validation. Capacity errors are
// deliberately distinct from binding and temporal ones so the UI can tell
// the operator to free a seat rather than renew or re-activate.
var (
	ErrDeviceLimitExceeded = errors.New("host has reached its licensed device limit")
	ErrHostLicenseInvalid  = errors.New("host license is not currently valid")
	ErrUnknownClient       = errors.New("client fingerprint is not known to this host")
	ErrUnknownToken        = errors.New("connection token is not known to this host")
	ErrTokenExpired        = errors.New("connection token has expired")
	ErrFingerprintMismatch = errors.New("connection token is bound to a different terminal")
	ErrHostUnreachable     = errors.New("host terminal unreachable")
)
