package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "poscli/internal/errors"
	"poscli/internal/infrastructure"
	transport "poscli/internal/transport/http"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	infrastructure.ResetLoggerForTesting()
	t.Setenv("POS_PATHS_BASE_DIR", t.TempDir())
	t.Setenv("POS_LOGGING_OUTPUT", "stdout")

	app, err := NewApplication()
	require.NoError(t, err)
	return app
}

func TestNewApplicationWiresEverything(t *testing.T) {
	app := newTestApplication(t)

	assert.NotNil(t, app.Activation)
	assert.NotNil(t, app.Credentials)
	assert.NotNil(t, app.Broker)
	assert.NotNil(t, app.Flow)
	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.Equal(t, ":8741", app.Server.Addr)
}

func TestApplicationHealthEndpoint(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health transport.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, Version, health.Version)
	// A fresh install has no mode yet.
	assert.Equal(t, "unactivated", health.Mode)
}

func TestApplicationServesMetrics(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplicationGateGuardsStoreRoutes(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	// The shared-store surface demands credentials on every request.
	resp, err := http.Get(server.URL + "/api/store/manifest")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var envelope apierrors.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "MISSING_CREDENTIALS", envelope.Error.ErrorCode)
}

func TestApplicationGateLeavesNegotiationOpen(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	// License, health and metrics answer without trust credentials so a
	// terminal can negotiate its way in.
	for _, path := range []string{"/api/license/status", "/healthz", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestApplicationLicenseStatusUnactivated(t *testing.T) {
	app := newTestApplication(t)

	server := httptest.NewServer(app.Router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/license/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Activated bool `json:"activated"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Activated)
}
