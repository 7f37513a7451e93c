package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"poscli/internal/broker"
	apierrors "poscli/internal/errors"
)

// Header names the gate reads the caller's credentials from.
const (
	HeaderConnectionToken   = "X-Connection-Token"
	HeaderClientFingerprint = "X-Client-Fingerprint"
)

// TokenValidator decides whether a (token, fingerprint) pair is currently
// entitled. Satisfied by both the in-process TrustBroker (host) and the
// broker HTTP client (client terminals).
type TokenValidator interface {
	Validate(ctx context.Context, token, fingerprint string) error
}

// TrustGate guards the shared-store routes. Every request re-validates the
// caller's token and fingerprint; there is no cached "was valid" flag, so a
// revoked or expired terminal is cut off on its next request, not at some
// later refresh.
type TrustGate struct {
	validator       TokenValidator
	logger          *slog.Logger
	excludePaths    map[string]struct{}
	excludePrefixes []string
}

// NewTrustGate creates a gate. The trust, license, health and metrics
// endpoints are excluded so a terminal can always negotiate its way back in.
func NewTrustGate(validator TokenValidator, logger *slog.Logger) *TrustGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustGate{
		validator: validator,
		logger:    logger.With(slog.String("component", "trust_gate")),
		excludePaths: map[string]struct{}{
			"/healthz": {},
			"/metrics": {},
		},
		excludePrefixes: []string{
			"/api/license/",
			"/api/trust/",
		},
	}
}

// Handler returns the middleware handler.
func (g *TrustGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		token := r.Header.Get(HeaderConnectionToken)
		fingerprint := r.Header.Get(HeaderClientFingerprint)

		if token == "" || fingerprint == "" {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.New(http.StatusUnauthorized, "MISSING_CREDENTIALS",
					"Connection token and terminal fingerprint headers are required")))
			return
		}

		if err := g.validator.Validate(ctx, token, fingerprint); err != nil {
			apiErr := g.mapError(err)
			g.logger.WarnContext(ctx, "shared-store access denied",
				slog.String("request_id", GetReqID(ctx)),
				slog.String("path", r.URL.Path),
				slog.String("error_code", apiErr.ErrorCode),
			)
			render.Render(w, r, apierrors.NewErrorResponse(apiErr))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (g *TrustGate) excluded(path string) bool {
	if _, ok := g.excludePaths[path]; ok {
		return true
	}
	for _, prefix := range g.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *TrustGate) mapError(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, broker.ErrTokenExpired):
		return apierrors.ErrTokenExpired
	case errors.Is(err, broker.ErrFingerprintMismatch):
		return apierrors.ErrFingerprintMismatch
	case errors.Is(err, broker.ErrUnknownToken):
		return apierrors.ErrUnknownToken
	case errors.Is(err, broker.ErrHostUnreachable):
		return apierrors.ErrHostUnreachable
	default:
		return apierrors.ErrInternalServer
	}
}
