package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "poscli/internal/errors"
	"poscli/internal/license"
	"poscli/internal/security"
)

var validate = validator.New()

// LicenseService is the slice of the activation service the handler needs.
type LicenseService interface {
	Activate(ctx context.Context, cardCode string, customer license.CustomerProfile) (*license.Record, error)
	Verify(ctx context.Context) (*license.Record, error)
	VerifyEncoded(ctx context.Context, encoded string) (*license.Record, error)
	Status(ctx context.Context) *license.StatusReport
}

// LicenseHandler serves the local license API consumed by the terminal UI.
type LicenseHandler struct {
	service     LicenseService
	credentials *security.CredentialStore
	logger      *slog.Logger
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(service LicenseService, credentials *security.CredentialStore, logger *slog.Logger) *LicenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseHandler{
		service:     service,
		credentials: credentials,
		logger:      logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the POST /api/license/activate payload.
type ActivationRequest struct {
	CardCode string                  `json:"card_code" validate:"required,min=9"`
	Customer license.CustomerProfile `json:"customer"`
}

// Bind implements render.Binder.
func (a *ActivationRequest) Bind(r *http.Request) error {
	return validate.Struct(a)
}

// VerifyRequest optionally carries an operator-supplied encoded license,
// used as proof of possession during recovery. Empty means verify the
// stored license.
type VerifyRequest struct {
	EncodedLicense string `json:"encoded_license,omitempty"`
}

// Bind implements render.Binder.
func (v *VerifyRequest) Bind(r *http.Request) error { return nil }

// ActivationResponse is the success envelope for activate and verify.
type ActivationResponse struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message"`
	Status    *license.StatusReport `json:"status,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// RecoveryRequest sets a new admin recovery password. The encoded license is
// the proof of possession: only someone holding a license valid for this
// machine may replace the credential.
type RecoveryRequest struct {
	EncodedLicense string `json:"encoded_license" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required,min=8"`
}

// Bind implements render.Binder.
func (rr *RecoveryRequest) Bind(r *http.Request) error {
	return validate.Struct(rr)
}

// RecoveryVerifyRequest checks a recovery password.
type RecoveryVerifyRequest struct {
	Password string `json:"password" validate:"required"`
}

// Bind implements render.Binder.
func (rv *RecoveryVerifyRequest) Bind(r *http.Request) error {
	return validate.Struct(rv)
}

// Routes returns the chi router for /api/license.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/status", h.GetStatus)
	r.Post("/activate", h.Activate)
	r.Post("/verify", h.Verify)
	r.Post("/recovery", h.SetRecoveryPassword)
	r.Post("/recovery/verify", h.VerifyRecoveryPassword)

	return r
}

// GetStatus handles GET /api/license/status.
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	render.JSON(w, r, h.service.Status(statusCtx))
}

// Activate handles POST /api/license/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	data := &ActivationRequest{}
	if err := render.Bind(r, data); err != nil {
		h.logger.WarnContext(ctx, "invalid activation request",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	record, err := h.service.Activate(ctx, data.CardCode, data.Customer)
	if err != nil {
		h.handleError(w, r, "activation failed", err)
		return
	}

	h.logger.InfoContext(ctx, "license activated",
		slog.String("request_id", reqID),
		slog.String("plan", record.PlanName),
		slog.Time("expires", record.ExpiryDate),
	)

	render.JSON(w, r, ActivationResponse{
		Success:   true,
		Message:   "License activated successfully on this terminal",
		Status:    h.service.Status(ctx),
		Timestamp: time.Now().UTC(),
	})
}

// Verify handles POST /api/license/verify. With no body it re-checks the
// stored license; with an encoded license it checks the supplied one.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &VerifyRequest{}
	if r.ContentLength > 0 {
		if err := render.Bind(r, data); err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
			return
		}
	}

	var err error
	if data.EncodedLicense != "" {
		_, err = h.service.VerifyEncoded(ctx, data.EncodedLicense)
	} else {
		_, err = h.service.Verify(ctx)
	}
	if err != nil {
		h.handleError(w, r, "license verification failed", err)
		return
	}

	render.JSON(w, r, ActivationResponse{
		Success:   true,
		Message:   "License is valid",
		Timestamp: time.Now().UTC(),
	})
}

// SetRecoveryPassword handles POST /api/license/recovery. A valid license
// for this machine is the proof of possession that authorizes replacing the
// admin recovery credential.
func (h *LicenseHandler) SetRecoveryPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &RecoveryRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if _, err := h.service.VerifyEncoded(ctx, data.EncodedLicense); err != nil {
		h.handleError(w, r, "recovery proof rejected", err)
		return
	}

	if err := h.credentials.Set(data.NewPassword); err != nil {
		h.handleError(w, r, "failed to store recovery credential", err)
		return
	}

	h.logger.InfoContext(ctx, "recovery password set",
		slog.String("request_id", middleware.GetReqID(ctx)),
	)
	render.JSON(w, r, ActivationResponse{
		Success:   true,
		Message:   "Recovery password updated",
		Timestamp: time.Now().UTC(),
	})
}

// VerifyRecoveryPassword handles POST /api/license/recovery/verify.
func (h *LicenseHandler) VerifyRecoveryPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &RecoveryVerifyRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	ok, err := h.credentials.Verify(data.Password)
	switch {
	case errors.Is(err, security.ErrNoCredential):
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.New(http.StatusPreconditionRequired, "NO_RECOVERY_CREDENTIAL",
				"No recovery password has been set on this terminal")))
		return
	case err != nil:
		h.handleError(w, r, "recovery credential check failed", err)
		return
	case !ok:
		h.logger.WarnContext(ctx, "recovery password rejected",
			slog.String("request_id", middleware.GetReqID(ctx)),
		)
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.New(http.StatusUnauthorized, "INVALID_CREDENTIALS",
				"The recovery password is incorrect")))
		return
	}

	render.JSON(w, r, ActivationResponse{
		Success:   true,
		Message:   "Recovery password accepted",
		Timestamp: time.Now().UTC(),
	})
}

// handleError maps a domain error onto the API error surface and renders it.
func (h *LicenseHandler) handleError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	apiErr := mapDomainError(err)

	h.logger.WarnContext(ctx, msg,
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("error_code", apiErr.ErrorCode),
		slog.String("error", err.Error()),
	)
	render.Render(w, r, apierrors.NewErrorResponse(apiErr))
}
