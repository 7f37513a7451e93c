package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is the client-terminal counterpart of the TrustBroker: a thin
// HTTP client over the host's /api/trust endpoints. Every call carries a
// bounded timeout so onboarding can never stall on an unreachable host.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// HeartbeatRequest is the liveness ping payload.
type HeartbeatRequest struct {
	ClientFingerprint string `json:"client_fingerprint" validate:"required"`
}

// ValidateRequest asks the host whether a (token, fingerprint) pair is
// currently entitled to the shared store.
type ValidateRequest struct {
	Token             string `json:"token" validate:"required"`
	ClientFingerprint string `json:"client_fingerprint" validate:"required"`
}

// apiErrorEnvelope mirrors the host's error response shape.
type apiErrorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	} `json:"error"`
}

// NewClient creates a trust client for the given host address
// (host[:port], scheme optional).
func NewClient(hostAddr string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(hostAddr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "trust_client")),
	}
}

// RequestToken asks the host for a connection token for this terminal.
func (c *Client) RequestToken(ctx context.Context, req TokenRequest) (*ConnectionToken, error) {
	var token ConnectionToken
	if err := c.post(ctx, "/api/trust/token", req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Heartbeat reports liveness to the host.
func (c *Client) Heartbeat(ctx context.Context, fingerprint string) error {
	return c.post(ctx, "/api/trust/heartbeat", HeartbeatRequest{ClientFingerprint: fingerprint}, nil)
}

// Validate re-checks the terminal's token with the host. Used both at
// launch and by the shared-store gate before opening a connection.
func (c *Client) Validate(ctx context.Context, token, fingerprint string) error {
	return c.post(ctx, "/api/trust/validate", ValidateRequest{Token: token, ClientFingerprint: fingerprint}, nil)
}

// Disconnect releases this terminal's seat on the host.
func (c *Client) Disconnect(ctx context.Context, fingerprint string) error {
	return c.post(ctx, "/api/trust/revoke", HeartbeatRequest{ClientFingerprint: fingerprint}, nil)
}

// RunHeartbeat sends periodic heartbeats until the context ends.
func (c *Client) RunHeartbeat(ctx context.Context, fingerprint string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(ctx, fingerprint); err != nil && ctx.Err() == nil {
				c.logger.Warn("heartbeat failed", slog.String("error", err.Error()))
			}
		}
	}
}

// post sends a JSON request and decodes either the success payload or the
// host's error envelope.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHostUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed host response: %v", ErrHostUnreachable, err)
		}
		return nil
	}

	var envelope apiErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: host returned status %d", ErrHostUnreachable, resp.StatusCode)
	}
	return c.mapError(envelope.Error.ErrorCode, envelope.Error.Message)
}

// mapError converts host error codes back into the broker sentinels so
// callers branch with errors.Is on either side of the wire.
func (c *Client) mapError(code, message string) error {
	switch code {
	case "DEVICE_LIMIT_EXCEEDED":
		return fmt.Errorf("%w: %s", ErrDeviceLimitExceeded, message)
	case "HOST_LICENSE_INVALID":
		return fmt.Errorf("%w: %s", ErrHostLicenseInvalid, message)
	case "TOKEN_EXPIRED":
		return fmt.Errorf("%w: %s", ErrTokenExpired, message)
	case "FINGERPRINT_MISMATCH":
		return fmt.Errorf("%w: %s", ErrFingerprintMismatch, message)
	case "UNKNOWN_TOKEN":
		return fmt.Errorf("%w: %s", ErrUnknownToken, message)
	case "UNKNOWN_CLIENT":
		return fmt.Errorf("%w: %s", ErrUnknownClient, message)
	default:
		return fmt.Errorf("host rejected request (%s): %s", code, message)
	}
}
