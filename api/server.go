/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for frontend
  5. WithIdentity: Caller identity from trusted headers (API routes only)

ROUTE GROUPS:
  /api/attendance/*     Punch clock, records, history, absence sweep
  /api/leave/*          Balances and leave requests
  /api/employees/*      Employee directory
  /api/leave-types/*    Leave type catalog
  /healthz              Liveness probe (no identity required)

SECURITY NOTE:
  Identity comes from X-User-ID / X-Role / X-Department-ID headers and is
  trusted as-is. An authenticating gateway must sit in front of this
  service in any real deployment.

SEE ALSO:
  - handlers.go: Handler implementations
  - identity.go: Identity middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-Role", "X-Department-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(WithIdentity)

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Post("/punch", h.Punch)
			r.Post("/check-in", h.CheckIn)
			r.Post("/check-out", h.CheckOut)
			r.Get("/today", h.GetToday)
			r.Get("/history", h.GetHistory)
			r.Get("/history/{userID}", h.GetHistory)
			r.Post("/records", h.AddManualRecord)
			r.Put("/records/{id}", h.UpdateRecord)
			r.Delete("/records/{id}", h.DeleteRecord)
			r.Post("/cleanup", h.RunCleanup)
		})

		// Leave routes
		r.Route("/leave", func(r chi.Router) {
			r.Route("/balances", func(r chi.Router) {
				r.Get("/", h.ListBalances)
				r.Post("/", h.UpsertBalance)
				r.Get("/consistency", h.CheckConsistency)
				r.Delete("/{id}", h.DeleteBalance)
			})
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListLeaveRequests)
				r.Post("/", h.CreateLeaveRequest)
				r.Put("/{id}/status", h.UpdateLeaveRequestStatus)
				r.Delete("/{id}", h.DeleteLeaveRequest)
			})
		})

		// Directory routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
		})
		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.SaveLeaveType)
			r.Delete("/{id}", h.DeleteLeaveType)
		})
	})

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
