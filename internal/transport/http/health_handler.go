package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"poscli/internal/onboarding"
)

// HealthHandler serves /healthz with the terminal's mode and license state,
// so an operator can see at a glance whether the daemon is unlocked.
type HealthHandler struct {
	version  string
	licenses LicenseService
	store    *onboarding.ConfigStore
	logger   *slog.Logger
	started  time.Time
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Mode          string `json:"mode"`
	LicenseStatus string `json:"license_status,omitempty"`
	DaysLeft      int    `json:"days_left,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, licenses LicenseService, store *onboarding.ConfigStore, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		version:  version,
		licenses: licenses,
		store:    store,
		logger:   logger.With(slog.String("handler", "health")),
		started:  time.Now(),
	}
}

// ServeHTTP handles GET /healthz.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       h.version,
		Mode:          "unactivated",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}

	cfg, err := h.store.Load()
	switch {
	case err == nil:
		resp.Mode = string(cfg.Mode())
	case errors.Is(err, onboarding.ErrCorruptState):
		resp.Mode = "corrupt"
	}

	if status := h.licenses.Status(r.Context()); status.Activated {
		resp.LicenseStatus = status.Status
		resp.DaysLeft = status.DaysLeft
	} else if status.Status != "" {
		resp.LicenseStatus = status.Status
	}

	render.JSON(w, r, resp)
}
