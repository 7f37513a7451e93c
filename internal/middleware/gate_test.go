package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poscli/internal/broker"
	apierrors "poscli/internal/errors"
)

type stubValidator struct {
	err      error
	gotToken string
	gotFP    string
	calls    int
}

func (s *stubValidator) Validate(ctx context.Context, token, fingerprint string) error {
	s.calls++
	s.gotToken = token
	s.gotFP = fingerprint
	return s.err
}

func gateRequest(t *testing.T, gate *TrustGate, path, token, fingerprint string) *httptest.ResponseRecorder {
	t.Helper()

	handler := gate.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(HeaderConnectionToken, token)
	}
	if fingerprint != "" {
		req.Header.Set(HeaderClientFingerprint, fingerprint)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestTrustGateAllowsValidCredentials(t *testing.T) {
	validator := &stubValidator{}
	gate := NewTrustGate(validator, nil)

	rec := gateRequest(t, gate, "/api/store/sales", "tok-1", "fp-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", validator.gotToken)
	assert.Equal(t, "fp-1", validator.gotFP)
}

func TestTrustGateRevalidatesEveryRequest(t *testing.T) {
	validator := &stubValidator{}
	gate := NewTrustGate(validator, nil)

	for i := 0; i < 3; i++ {
		gateRequest(t, gate, "/api/store/sales", "tok-1", "fp-1")
	}
	// No caching: a revocation takes effect on the very next request.
	assert.Equal(t, 3, validator.calls)

	validator.err = broker.ErrUnknownToken
	rec := gateRequest(t, gate, "/api/store/sales", "tok-1", "fp-1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrustGateRejectsMissingHeaders(t *testing.T) {
	gate := NewTrustGate(&stubValidator{}, nil)

	rec := gateRequest(t, gate, "/api/store/sales", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = gateRequest(t, gate, "/api/store/sales", "tok-1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrustGateErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired", broker.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"mismatch", broker.ErrFingerprintMismatch, http.StatusUnauthorized, "FINGERPRINT_MISMATCH"},
		{"unknown", broker.ErrUnknownToken, http.StatusUnauthorized, "UNKNOWN_TOKEN"},
		{"host down", broker.ErrHostUnreachable, http.StatusServiceUnavailable, "HOST_UNREACHABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewTrustGate(&stubValidator{err: tt.err}, nil)

			rec := gateRequest(t, gate, "/api/store/sales", "tok-1", "fp-1")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var envelope apierrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tt.wantCode, envelope.Error.ErrorCode)
		})
	}
}

func TestTrustGateExcludedPaths(t *testing.T) {
	validator := &stubValidator{err: broker.ErrUnknownToken}
	gate := NewTrustGate(validator, nil)

	// Negotiation endpoints stay reachable without credentials, otherwise a
	// revoked terminal could never get back in.
	for _, path := range []string{
		"/healthz",
		"/metrics",
		"/api/license/status",
		"/api/trust/token",
	} {
		rec := gateRequest(t, gate, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.Equal(t, 0, validator.calls)
}
