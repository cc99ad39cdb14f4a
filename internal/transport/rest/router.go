package rest

import (
	"database/sql"
	"log/slog"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/audit"
	"github.com/frahmantamala/user-management/internal/auth"
	"github.com/frahmantamala/user-management/internal/role"
	"github.com/frahmantamala/user-management/internal/transport/middleware"
	"github.com/frahmantamala/user-management/internal/transport/openapi"
	"github.com/frahmantamala/user-management/internal/transport/swagger"
	"github.com/frahmantamala/user-management/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups the domain handlers mounted under /api/v1.
type Handlers struct {
	Auth  *auth.Handler
	RBAC  *auth.RBACAuthorization
	Users *user.Handler
	Roles *role.Handler
	Logs  *audit.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, dbComponent string, h Handlers, cfg internal.ServerConfig, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, dbComponent)

	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", openapi.Handler())
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/register", h.Users.Register)
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.With(h.Auth.AuthMiddleware).Get("/me", h.Auth.Me)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			// reads are open to any authenticated user
			pr.Get("/users", h.Users.ListUsers)
			pr.Get("/users/{id}", h.Users.GetUser)
			pr.Get("/profiles", h.Users.ListProfiles)
			pr.Get("/profiles/{id}", h.Users.GetProfile)
			pr.Get("/roles", h.Roles.ListRoles)
			pr.Get("/roles/{id}", h.Roles.GetRole)

			pr.Group(func(ar chi.Router) {
				ar.Use(h.RBAC.RequireAdmin())

				ar.Post("/users", h.Users.CreateUser)
				ar.Patch("/users/{id}", h.Users.UpdateUser)
				ar.Delete("/users/{id}", h.Users.DeleteUser)
				ar.Post("/users/{id}/restore", h.Users.RestoreUser)
				ar.Post("/users/{id}/roles", h.Users.AssignRoles)
				ar.Delete("/users/{id}/roles/{roleId}", h.Users.RemoveRole)
				ar.Post("/users/{id}/profile", h.Users.CreateProfile)

				ar.Patch("/profiles/{id}", h.Users.UpdateProfile)
				ar.Delete("/profiles/{id}", h.Users.DeleteProfile)
				ar.Post("/profiles/{id}/restore", h.Users.RestoreProfile)

				ar.Post("/roles", h.Roles.CreateRole)
				ar.Patch("/roles/{id}", h.Roles.UpdateRole)
				ar.Delete("/roles/{id}", h.Roles.DeleteRole)
				ar.Post("/roles/{id}/restore", h.Roles.RestoreRole)

				ar.Get("/logs", h.Logs.ListLogs)
				ar.Get("/logs/{id}", h.Logs.GetLog)
			})
		})
	})
}
