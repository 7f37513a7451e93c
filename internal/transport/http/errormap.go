package http

import (
	"context"
	"errors"
	"net/http"

	"poscli/internal/broker"
	apierrors "poscli/internal/errors"
	"poscli/internal/license"
)

// mapDomainError translates sentinel errors from the license and broker
// packages into APIErrors with stable codes. Every licensing failure keeps
// its own code so the UI can tell the operator what to do about it, not
// just that activation failed.
func mapDomainError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, license.ErrCardInvalidFormat):
		return apierrors.ErrCardFormat
	case errors.Is(err, license.ErrCardNotFound):
		return apierrors.ErrCardNotFound
	case errors.Is(err, license.ErrCardAlreadyUsed):
		return apierrors.ErrCardAlreadyUsed
	case errors.Is(err, license.ErrCardExpired):
		return apierrors.ErrCardExpired
	case errors.Is(err, license.ErrTooManyAttempts):
		return apierrors.ErrTooManyAttempts
	case errors.Is(err, license.ErrNetworkUnavailable):
		return apierrors.ErrNetworkUnavailable
	case errors.Is(err, license.ErrMachineMismatch):
		return apierrors.ErrMachineMismatch
	case errors.Is(err, license.ErrExpired):
		return apierrors.ErrLicenseExpired
	case errors.Is(err, license.ErrDecode):
		return apierrors.ErrLicenseCorrupt
	case errors.Is(err, license.ErrNotActivated):
		return apierrors.ErrNotActivated

	case errors.Is(err, broker.ErrDeviceLimitExceeded):
		return apierrors.ErrDeviceLimit
	case errors.Is(err, broker.ErrHostLicenseInvalid):
		return apierrors.ErrHostLicenseInvalid
	case errors.Is(err, broker.ErrTokenExpired):
		return apierrors.ErrTokenExpired
	case errors.Is(err, broker.ErrFingerprintMismatch):
		return apierrors.ErrFingerprintMismatch
	case errors.Is(err, broker.ErrUnknownToken):
		return apierrors.ErrUnknownToken
	case errors.Is(err, broker.ErrUnknownClient):
		return apierrors.New(http.StatusUnauthorized, "UNKNOWN_CLIENT", "This terminal is not known to the host. Reconnect to request a new token")
	case errors.Is(err, broker.ErrHostUnreachable):
		return apierrors.ErrHostUnreachable

	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.New(http.StatusGatewayTimeout, "TIMEOUT", "The request timed out while processing. Please try again")

	default:
		return apierrors.ErrInternalServer
	}
}
