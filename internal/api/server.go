// Package api serves the dashboard HTTP API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jwulff/gridboard/internal/integration"
	"github.com/jwulff/gridboard/internal/repository"
)

// Options configures a Server.
type Options struct {
	Repos        *repository.Set
	Integrations *integration.Registry
	Logger       logrus.FieldLogger
	// Registerer receives the HTTP metrics. Gatherer backs /metrics; when nil
	// the endpoint is not mounted.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// AllowedOrigins enables CORS for browser clients such as kiosk
	// displays served from another origin.
	AllowedOrigins []string
}

// Server routes HTTP requests to the repositories.
type Server struct {
	repos        *repository.Set
	integrations *integration.Registry
	log          logrus.FieldLogger
	metrics      *httpMetrics
	gatherer     prometheus.Gatherer
	origins      []string
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Integrations == nil {
		opts.Integrations = integration.NewRegistry()
	}
	return &Server{
		repos:        opts.Repos,
		integrations: opts.Integrations,
		log:          opts.Logger.WithField("component", "api"),
		metrics:      newHTTPMetrics(opts.Registerer),
		gatherer:     opts.Gatherer,
		origins:      opts.AllowedOrigins,
	}
}

// Routes returns the full HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/dashboards", func(r chi.Router) {
		r.Get("/", s.handleListDashboards)
		r.Post("/", s.handleCreateDashboard)
		r.Get("/default", s.handleGetDefaultDashboard)
		r.Get("/by-slug/{slug}", s.handleGetDashboardBySlug)
		r.Post("/import", s.handleImportDashboard)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDashboard)
			r.Put("/", s.handleUpdateDashboard)
			r.Delete("/", s.handleDeleteDashboard)
			r.Put("/default", s.handleSetDefaultDashboard)
			r.Post("/duplicate", s.handleDuplicateDashboard)
			r.Get("/export", s.handleExportDashboard)
		})
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", s.handleGetLayout)
		r.Put("/layout/{widgetId}", s.handleSetLayout)
		r.Put("/layouts", s.handleBatchSetLayouts)
		r.Post("/widgets", s.handleAttachWidget)
		r.Delete("/widgets/{widgetId}", s.handleDetachWidget)
	})

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", s.handleListGroups)
		r.Post("/", s.handleCreateGroup)
		r.Post("/batch", s.handleCreateGroupWithMembers)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetGroup)
			r.Put("/", s.handleUpdateGroup)
			r.Delete("/", s.handleDeleteGroup)
			r.Post("/members", s.handleAddGroupMember)
			r.Delete("/members/{widgetId}", s.handleRemoveGroupMember)
			r.Put("/layouts", s.handleSetGroupMemberLayouts)
			r.Put("/layout", s.handleSetGroupLayout)
		})
	})

	r.Route("/widgets", func(r chi.Router) {
		r.Get("/", s.handleListWidgets)
		r.Post("/", s.handleCreateWidget)
		r.Get("/{id}", s.handleGetWidget)
		r.Put("/{id}", s.handleUpdateWidget)
		r.Delete("/{id}", s.handleDeleteWidget)
	})

	r.Route("/integrations", func(r chi.Router) {
		r.Get("/", s.handleListIntegrations)
		r.Post("/", s.handleCreateIntegration)
		r.Get("/types", s.handleListIntegrationTypes)
		r.Get("/{id}", s.handleGetIntegration)
		r.Delete("/{id}", s.handleDeleteIntegration)
		r.Post("/{id}/test", s.handleTestIntegration)
		r.Get("/{id}/data", s.handleGetIntegrationData)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repos.Dashboards.GetDefault(r.Context()); err != nil {
		s.log.WithError(err).Error("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
