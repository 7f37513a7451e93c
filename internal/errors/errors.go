package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Licensing and trust error codes. Each scenario gets its own code and a
// user-actionable message: a device-limit rejection, an expired license and a
// wrong-machine license all require different operator action, so a generic
// "activation failed" is never returned.
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrCardFormat       = New(http.StatusBadRequest, "CARD_INVALID_FORMAT", "The scratch card code is not in the expected format. Check the code printed on the card and try again")

	// 401 Unauthorized
	ErrUnknownToken        = New(http.StatusUnauthorized, "UNKNOWN_TOKEN", "The connection token is not known to this host. Reconfigure the terminal to request a new one")
	ErrTokenExpired        = New(http.StatusUnauthorized, "TOKEN_EXPIRED", "The connection token has expired. Reconnect to the host to obtain a new one")
	ErrFingerprintMismatch = New(http.StatusUnauthorized, "FINGERPRINT_MISMATCH", "The connection token belongs to a different terminal")

	// 403 Forbidden
	ErrMachineMismatch    = New(http.StatusForbidden, "MACHINE_MISMATCH", "This license is bound to a different machine. Contact support to transfer it")
	ErrLicenseExpired     = New(http.StatusForbidden, "LICENSE_EXPIRED", "The license has expired. Renew your plan to continue")
	ErrHostLicenseInvalid = New(http.StatusForbidden, "HOST_LICENSE_INVALID", "The host terminal's license is not currently valid")

	// 404 Not Found
	ErrCardNotFound = New(http.StatusNotFound, "CARD_NOT_FOUND", "The scratch card code was not recognized. Verify the code or contact your vendor")

	// 409 Conflict
	ErrCardAlreadyUsed = New(http.StatusConflict, "CARD_ALREADY_USED", "This scratch card has already been redeemed on another machine. Purchase a new card to license this terminal")
	ErrDeviceLimit     = New(http.StatusConflict, "DEVICE_LIMIT_EXCEEDED", "The host has reached its licensed device limit. Disconnect another terminal or upgrade the plan for more seats")

	// 429 Too Many Requests
	ErrTooManyAttempts = New(http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many activation attempts. Wait a moment and try again")

	// 410 Gone
	ErrCardExpired = New(http.StatusGone, "CARD_EXPIRED", "The scratch card's redemption deadline has passed. Contact your vendor for a replacement")

	// 412 Precondition Required family
	ErrNotActivated = New(http.StatusPreconditionRequired, "LICENSE_NOT_ACTIVATED", "No license has been activated on this terminal. Complete first-run setup to continue")

	// 422 Unprocessable Entity
	ErrLicenseCorrupt = New(http.StatusUnprocessableEntity, "LICENSE_CORRUPT", "The stored license could not be read. The terminal must be set up again")

	// 500 / 503
	ErrInternalServer     = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrNetworkUnavailable = New(http.StatusServiceUnavailable, "NETWORK_UNAVAILABLE", "The card issuing authority could not be reached. Check connectivity and try again")
	ErrHostUnreachable    = New(http.StatusServiceUnavailable, "HOST_UNREACHABLE", "The host terminal could not be reached. Check the address and the local network, then retry")
)

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// NewInternalError creates a simple internal server error
func NewInternalError(message string) *APIError {
	return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}

// ErrorResponse represents a standard error response envelope
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
