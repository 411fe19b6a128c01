package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-fileops/internal/config"
	"go-fileops/internal/handler"
	"go-fileops/internal/metrics"
	"go-fileops/internal/middleware"
	"go-fileops/internal/websocket"
)

type Handlers struct {
	Operations *handler.OperationsHandler
	Log        *handler.LogHandler
	Trash      *handler.TrashHandler
	Auth       *handler.AuthHandler
}

// HealthCheck reports an unhealthy dependency. It may be nil.
type HealthCheck func(r *http.Request) error

func New(
	cfg *config.Config,
	m *metrics.Metrics,
	authMiddleware *middleware.AuthMiddleware,
	handlers Handlers,
	hub *websocket.Hub,
	health HealthCheck,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, 10)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(authMiddleware.RequireAuth)

		// http.TimeoutHandler cannot hijack, so the stream sits outside it.
		api.Get("/events", hub.ServeWS)

		api.Group(func(rest chi.Router) {
			rest.Use(middleware.Timeout(cfg.RequestTimeout))

			rest.Post("/auth/token", handlers.Auth.IssueToken)

			rest.Post("/operations", handlers.Operations.Submit)
			rest.Get("/operations", handlers.Operations.List)
			rest.Get("/operations/history", handlers.Operations.History)
			rest.Get("/operations/{id}", handlers.Operations.Get)
			rest.Post("/operations/{id}/cancel", handlers.Operations.Cancel)
			rest.Post("/operations/{id}/conflicts/{step_id}", handlers.Operations.ResolveConflict)

			rest.Get("/log", handlers.Log.List)

			rest.Get("/trash", handlers.Trash.List)
			rest.Post("/trash/restore", handlers.Trash.RestoreMany)
			rest.Post("/trash/{id}/restore", handlers.Trash.Restore)
			rest.Delete("/trash/{id}", handlers.Trash.Remove)
			rest.Delete("/trash", handlers.Trash.Empty)
		})
	})

	return r
}
