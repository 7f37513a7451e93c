package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poscli/internal/broker"
	"poscli/internal/config"
	custommw "poscli/internal/middleware"
	"poscli/internal/shared/testutil"
)

// newGatedStoreServer serves the store routes behind the trust gate with a
// real broker as validator, so tests exercise the same chain the daemon
// mounts.
func newGatedStoreServer(t *testing.T) (*httptest.Server, *broker.TrustBroker) {
	t.Helper()

	b := broker.New(
		&hostLicenseStub{record: testutil.HostRecord("host-fp", 2)},
		broker.HostInfo{
			HostName:          "front-desk",
			HostIP:            "192.168.1.10",
			DatabasePath:      `\\front-desk\posdata\pos.db`,
			DatabaseShareName: "posdata",
		},
		config.TrustConfig{TokenTTL: time.Hour, StalenessWindow: 90 * time.Second},
		nil, nil,
	)

	gate := custommw.NewTrustGate(b, nil)
	r := chi.NewRouter()
	r.Use(gate.Handler)
	r.Mount("/api/trust", NewTrustHandler(b, nil).Routes())
	r.Mount("/api/store", NewStoreHandler(b.Host(), nil).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, b
}

func getManifest(t *testing.T, serverURL, token, fingerprint string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, serverURL+"/api/store/manifest", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(custommw.HeaderConnectionToken, token)
	}
	if fingerprint != "" {
		req.Header.Set(custommw.HeaderClientFingerprint, fingerprint)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestStoreManifestRequiresCredentials(t *testing.T) {
	server, _ := newGatedStoreServer(t)

	resp := getManifest(t, server.URL, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_CREDENTIALS", decodeErrorCode(t, resp))
}

func TestStoreManifestWithValidToken(t *testing.T) {
	server, _ := newGatedStoreServer(t)
	client := broker.NewClient(server.URL, 5*time.Second, nil)

	token, err := client.RequestToken(context.Background(), broker.TokenRequest{
		ClientFingerprint: "fp-1",
		DisplayName:       "register-1",
	})
	require.NoError(t, err)

	resp := getManifest(t, server.URL, token.Token, "fp-1")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var manifest ShareManifest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&manifest))
	assert.Equal(t, "front-desk", manifest.HostName)
	assert.Equal(t, "posdata", manifest.DatabaseShareName)
	assert.Equal(t, `\\front-desk\posdata\pos.db`, manifest.DatabasePath)
}

func TestStoreManifestRevalidatesEveryRequest(t *testing.T) {
	server, b := newGatedStoreServer(t)
	client := broker.NewClient(server.URL, 5*time.Second, nil)
	ctx := context.Background()

	token, err := client.RequestToken(ctx, broker.TokenRequest{
		ClientFingerprint: "fp-1",
		DisplayName:       "register-1",
	})
	require.NoError(t, err)

	resp := getManifest(t, server.URL, token.Token, "fp-1")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A token presented by another machine is a mismatch, not a pass.
	resp = getManifest(t, server.URL, token.Token, "fp-other")
	assert.Equal(t, "FINGERPRINT_MISMATCH", decodeErrorCode(t, resp))

	// Revocation cuts the terminal off on its very next request.
	require.NoError(t, b.Revoke(ctx, "fp-1"))
	resp = getManifest(t, server.URL, token.Token, "fp-1")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNKNOWN_TOKEN", decodeErrorCode(t, resp))
}
