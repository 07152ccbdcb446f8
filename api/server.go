/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/runs/*           Payout run lifecycle and calculation
  /api/employees/*      Employee management and ledger history
  /api/plans/*          Compensation plan configs
  /api/adjustments/*    Post-finalization correction workflow
  /api/settlements/*    Full & Final settlements
  /api/admin/*          Reference data (segments, targets, deals, rates)
  /api/scenarios/*      Demo scenarios
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Run lifecycle routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)
			r.Get("/{id}", h.GetRun)
			r.Delete("/{id}", h.DeleteRun)
			r.Post("/{id}/validate", h.ValidateRun)
			r.Post("/{id}/calculate", h.CalculateRun)
			r.Post("/{id}/transition", h.TransitionRun)
			r.Get("/{id}/payouts", h.ListRunPayouts)
			r.Post("/{id}/release-collections", h.ReleaseCollections)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/payouts", h.GetEmployeePayouts)
			r.Get("/{id}/clawbacks", h.GetEmployeeClawbacks)
		})

		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		// Adjustment routes
		r.Route("/adjustments", func(r chi.Router) {
			r.Get("/", h.ListAdjustments)
			r.Post("/", h.CreateAdjustment)
			r.Post("/{id}/approve", h.ApproveAdjustment)
			r.Post("/{id}/reject", h.RejectAdjustment)
			r.Post("/{id}/apply", h.ApplyAdjustment)
		})

		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Post("/", h.OpenSettlement)
			r.Get("/{id}", h.GetSettlement)
			r.Post("/{id}/tranche1", h.CalculateTranche1)
			r.Post("/{id}/tranche2", h.CalculateTranche2)
		})

		// Admin routes: reference data feeding the calculator
		r.Route("/admin", func(r chi.Router) {
			r.Post("/segments", h.CreateSegment)
			r.Post("/targets", h.CreateTarget)
			r.Post("/deals", h.CreateDeal)
			r.Post("/snapshots", h.CreateSnapshot)
			r.Post("/rates", h.SetRate)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Payout Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Payout Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/runs">/api/runs</a> - List payout runs</li>
<li><a href="/api/employees">/api/employees</a> - List employees</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
