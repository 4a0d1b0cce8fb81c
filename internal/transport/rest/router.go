package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/hrcore/leave-management/internal/accrual"
	"github.com/hrcore/leave-management/internal/auth"
	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/leave"
	"github.com/hrcore/leave-management/internal/moduleaccess"
	"github.com/hrcore/leave-management/internal/transport/middleware"
	"github.com/hrcore/leave-management/internal/transport/swagger"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth         *auth.Handler
	AuthService  *auth.Service
	Leave        *leave.Handler
	Balance      *balance.Handler
	Accrual      *accrual.Handler
	ModuleAccess *moduleaccess.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.Refresh)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticator(h.AuthService))

			pr.Route("/leaves", func(lr chi.Router) {
				lr.Post("/", h.Leave.Apply)
				lr.Get("/", h.Leave.ListMine)
				lr.Get("/{id}", h.Leave.GetRequest)
				lr.Put("/{id}", h.Leave.Edit)
				lr.Delete("/{id}", h.Leave.Delete)
				lr.Post("/{id}/cancel", h.Leave.Cancel)

				// Decider routes
				lr.Group(func(dr chi.Router) {
					dr.Use(middleware.RequireDecider)
					dr.Get("/pending", h.Leave.ListPending)
					dr.Patch("/{id}/decision", h.Leave.Decide)
					dr.Get("/employee/{employeeID}", h.Leave.ListForEmployee)
				})
			})

			pr.Route("/balances", func(br chi.Router) {
				br.Get("/me", h.Balance.GetMine)
				br.Group(func(dr chi.Router) {
					dr.Use(middleware.RequireDecider)
					dr.Get("/employee/{employeeID}", h.Balance.GetForEmployee)
				})
			})

			// Admin routes
			pr.Group(func(ar chi.Router) {
				ar.Use(middleware.RequireRoles(employee.RoleHR, employee.RoleSuperAdmin))
				ar.Post("/accrual/run", h.Accrual.Run)
				ar.Route("/modules/{module}/members", func(mr chi.Router) {
					mr.Get("/", h.ModuleAccess.Members)
					mr.Post("/", h.ModuleAccess.Grant)
					mr.Delete("/", h.ModuleAccess.Revoke)
				})
			})
		})
	})
}
