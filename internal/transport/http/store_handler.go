package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"poscli/internal/broker"
)

// StoreHandler serves shared-store connection details to attached client
// terminals. It is mounted behind the trust gate: every request must carry a
// connection token and fingerprint that still validate.
type StoreHandler struct {
	host   broker.HostInfo
	logger *slog.Logger
}

// NewStoreHandler creates a store handler for this host's share.
func NewStoreHandler(host broker.HostInfo, logger *slog.Logger) *StoreHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreHandler{
		host:   host,
		logger: logger.With(slog.String("handler", "store")),
	}
}

// ShareManifest tells a client where the shared database lives.
type ShareManifest struct {
	HostName          string `json:"host_name"`
	HostIP            string `json:"host_ip"`
	DatabasePath      string `json:"database_path"`
	DatabaseShareName string `json:"database_share_name"`
}

// Routes returns the chi router for /api/store.
func (h *StoreHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/manifest", h.GetManifest)
	return r
}

// GetManifest handles GET /api/store/manifest.
func (h *StoreHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ShareManifest{
		HostName:          h.host.HostName,
		HostIP:            h.host.HostIP,
		DatabasePath:      h.host.DatabasePath,
		DatabaseShareName: h.host.DatabaseShareName,
	})
}
