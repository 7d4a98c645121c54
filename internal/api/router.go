package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rflorenc/iot-device-migrator/internal/migration"
	"github.com/rflorenc/iot-device-migrator/internal/models"
)

// Server holds shared state for all API handlers.
type Server struct {
	Discovery    Discovery
	Migrations   *migration.Orchestrator
	Operations   *models.OperationStore
	PollInterval time.Duration
}

// NewRouter builds the chi router with all API and WebSocket routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Wizard data
		r.Get("/subscriptions", s.ListSubscriptions)
		r.Get("/central-apps", s.ListCentralApps)
		r.Get("/central-apps/{subdomain}/groups", s.ListDeviceGroups)
		r.Get("/central-apps/{subdomain}/templates", s.ListDeviceTemplates)
		r.Get("/central-apps/{subdomain}/migration-component", s.GetMigrationComponent)
		r.Get("/dps", s.ListProvisioningServices)
		r.Get("/dps/source", s.DescribeDPSSource)
		r.Get("/hubs", s.ListHubs)

		// Migration
		r.Post("/migrations/credentials", s.GetSourceCredentials)
		r.Post("/migrations", s.SubmitMigration)

		// Hub jobs
		r.Get("/hub-jobs", s.ListHubJobs)
		r.Put("/hub-jobs/{id}/enrollment", s.SetHubJobEnrollment)
		r.Post("/hub-jobs/{id}/run", s.RunHubJob)

		// Status
		r.Get("/jobs", s.ListMigrationJobs)
		r.Get("/operations", s.ListOperations)
		r.Get("/operations/{id}", s.GetOperation)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/operations/{id}/logs", s.StreamOperationLogs)
	r.Get("/ws/jobs", s.StreamJobs)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
