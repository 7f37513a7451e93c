package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"poscli/internal/broker"
	apierrors "poscli/internal/errors"
)

// TrustService is the slice of the trust broker the handler needs.
type TrustService interface {
	RequestToken(ctx context.Context, req broker.TokenRequest) (*broker.ConnectionToken, error)
	Heartbeat(ctx context.Context, fingerprint string) error
	Revoke(ctx context.Context, fingerprint string) error
	Validate(ctx context.Context, token, fingerprint string) error
	Clients(ctx context.Context) []broker.ConnectedClient
}

// TrustHandler serves the LAN trust API in host mode. Client terminals are
// its only consumers; payload shapes match the broker client exactly.
type TrustHandler struct {
	service TrustService
	logger  *slog.Logger
}

// NewTrustHandler creates a trust handler.
func NewTrustHandler(service TrustService, logger *slog.Logger) *TrustHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "trust")),
	}
}

// TokenRequestPayload binds the POST /api/trust/token body.
type TokenRequestPayload struct {
	broker.TokenRequest
}

// Bind implements render.Binder.
func (p *TokenRequestPayload) Bind(r *http.Request) error {
	return validate.Struct(&p.TokenRequest)
}

// HeartbeatPayload binds heartbeat and revoke bodies.
type HeartbeatPayload struct {
	broker.HeartbeatRequest
}

// Bind implements render.Binder.
func (p *HeartbeatPayload) Bind(r *http.Request) error {
	return validate.Struct(&p.HeartbeatRequest)
}

// ValidatePayload binds the POST /api/trust/validate body.
type ValidatePayload struct {
	broker.ValidateRequest
}

// Bind implements render.Binder.
func (p *ValidatePayload) Bind(r *http.Request) error {
	return validate.Struct(&p.ValidateRequest)
}

// AckResponse is the minimal success envelope for side-effect endpoints.
type AckResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientsResponse lists the host's bookkeeping table.
type ClientsResponse struct {
	Clients []broker.ConnectedClient `json:"clients"`
	Count   int                      `json:"count"`
}

// Routes returns the chi router for /api/trust.
func (h *TrustHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(10 * time.Second))

	r.Post("/token", h.RequestToken)
	r.Post("/heartbeat", h.Heartbeat)
	r.Post("/revoke", h.Revoke)
	r.Post("/validate", h.Validate)
	r.Get("/clients", h.ListClients)

	return r
}

// RequestToken handles POST /api/trust/token.
func (h *TrustHandler) RequestToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	data := &TokenRequestPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	// The broker sees the caller's address, not whatever the client claims.
	if data.IPAddress == "" {
		data.IPAddress = r.RemoteAddr
	}

	token, err := h.service.RequestToken(ctx, data.TokenRequest)
	if err != nil {
		h.handleError(w, r, "token request rejected", err)
		return
	}

	h.logger.InfoContext(ctx, "token issued",
		slog.String("request_id", reqID),
		slog.String("client", data.DisplayName),
	)
	render.JSON(w, r, token)
}

// Heartbeat handles POST /api/trust/heartbeat.
func (h *TrustHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &HeartbeatPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if err := h.service.Heartbeat(ctx, data.ClientFingerprint); err != nil {
		h.handleError(w, r, "heartbeat rejected", err)
		return
	}
	render.JSON(w, r, AckResponse{Success: true, Timestamp: time.Now().UTC()})
}

// Revoke handles POST /api/trust/revoke.
func (h *TrustHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &HeartbeatPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if err := h.service.Revoke(ctx, data.ClientFingerprint); err != nil {
		h.handleError(w, r, "revoke rejected", err)
		return
	}

	h.logger.InfoContext(ctx, "client seat released",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("fingerprint", data.ClientFingerprint),
	)
	render.JSON(w, r, AckResponse{Success: true, Timestamp: time.Now().UTC()})
}

// Validate handles POST /api/trust/validate.
func (h *TrustHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &ValidatePayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if err := h.service.Validate(ctx, data.Token, data.ClientFingerprint); err != nil {
		h.handleError(w, r, "token validation failed", err)
		return
	}
	render.JSON(w, r, AckResponse{Success: true, Timestamp: time.Now().UTC()})
}

// ListClients handles GET /api/trust/clients, the host's status surface.
func (h *TrustHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients := h.service.Clients(r.Context())
	render.JSON(w, r, ClientsResponse{Clients: clients, Count: len(clients)})
}

func (h *TrustHandler) handleError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	apiErr := mapDomainError(err)

	h.logger.WarnContext(ctx, msg,
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("error_code", apiErr.ErrorCode),
		slog.String("error", err.Error()),
	)
	render.Render(w, r, apierrors.NewErrorResponse(apiErr))
}
