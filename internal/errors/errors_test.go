package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusForbidden, "LICENSE_EXPIRED", "The license has expired")
	assert.Equal(t, "The license has expired", err.Error())
	assert.Equal(t, http.StatusForbidden, err.StatusCode)
	assert.Equal(t, "LICENSE_EXPIRED", err.ErrorCode)
}

func TestDistinctCodesPerFailureReason(t *testing.T) {
	// Device-limit, expiry and wrong-machine each require different operator
	// action, so their codes must never collapse into one another.
	codes := map[string]bool{}
	for _, e := range []*APIError{
		ErrCardFormat, ErrCardNotFound, ErrCardAlreadyUsed, ErrCardExpired,
		ErrMachineMismatch, ErrLicenseExpired, ErrNotActivated, ErrLicenseCorrupt,
		ErrDeviceLimit, ErrHostLicenseInvalid, ErrTokenExpired,
		ErrFingerprintMismatch, ErrUnknownToken, ErrNetworkUnavailable,
		ErrHostUnreachable,
	} {
		assert.False(t, codes[e.ErrorCode], "duplicate error code %s", e.ErrorCode)
		codes[e.ErrorCode] = true
		assert.NotEmpty(t, e.Message)
	}
}

func TestRenderSetsStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	require.NoError(t, render.Render(w, r, ErrDeviceLimit))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "DEVICE_LIMIT_EXCEEDED")
}

func TestErrValidationDetails(t *testing.T) {
	err := ErrValidation("card_code", "is required")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	details, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "card_code", details.Field)
}

func TestErrorResponseEnvelope(t *testing.T) {
	resp := NewErrorResponse(ErrCardAlreadyUsed)
	assert.False(t, resp.Success)
	assert.Equal(t, "CARD_ALREADY_USED", resp.Error.ErrorCode)
}
