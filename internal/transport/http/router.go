package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions collects the handlers the daemon mounts. Trust is nil for
// standalone and client installations; only hosts serve the LAN trust API.
type RouterOptions struct {
	License  *LicenseHandler
	Trust    *TrustHandler
	Store    *StoreHandler
	Health   *HealthHandler
	Registry *prometheus.Registry
}

// NewRouter assembles the daemon's HTTP surface.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.Mount("/license", opts.License.Routes())
		if opts.Trust != nil {
			r.Mount("/trust", opts.Trust.Routes())
		}
		if opts.Store != nil {
			r.Mount("/store", opts.Store.Routes())
		}
	})

	r.Method(http.MethodGet, "/healthz", opts.Health)

	if opts.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
