package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/account-service/api"
	"github.com/frahmantamala/account-service/internal/auth"
	"github.com/frahmantamala/account-service/internal/transport/middleware"
	"github.com/frahmantamala/account-service/internal/transport/swagger"
	"github.com/frahmantamala/account-service/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// UUIDPattern constrains the {uuid} route parameter to the canonical
// lowercase hyphenated form. Anything else falls through to 404.
const UUIDPattern = "[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, allowedOrigins string, authHandler *auth.Handler, userHandler *user.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve the embedded OpenAPI document at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.OpenAPIDocument)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Health check routes
	router.Get("/health", healthHandler.healthCheckHandler)
	router.Get("/ping", healthHandler.pingHandler)

	// Auth routes
	if authHandler != nil {
		router.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/refresh", authHandler.RefreshToken)
			sr.Post("/logout", authHandler.Logout)
		})
	}

	// User resource. Every request carries a principal: the middleware
	// resolves the bearer token when present and falls back to the
	// anonymous principal otherwise, so creation stays open while the
	// handlers decide visibility per operation.
	if userHandler != nil && authHandler != nil {
		router.Group(func(pr chi.Router) {
			pr.Use(authHandler.PrincipalMiddleware)

			pr.Route("/users", func(ur chi.Router) {
				ur.Get("/", userHandler.List)
				ur.Post("/", userHandler.Create)

				ur.Route("/{uuid:"+UUIDPattern+"}", func(dr chi.Router) {
					dr.Get("/", userHandler.Retrieve)
					dr.Put("/", userHandler.Update)
					dr.Patch("/", userHandler.Update)
					dr.Delete("/", userHandler.Delete)
				})
			})
		})
	}
}
