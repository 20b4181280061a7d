package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/farm-fresh-api/internal/auth"
	"github.com/redmonkez12/farm-fresh-api/internal/config"
	"github.com/redmonkez12/farm-fresh-api/internal/httputil"
	"github.com/redmonkez12/farm-fresh-api/internal/logging"
)

// apiPrefix is where the frontend's relative API base points
const apiPrefix = "/api"

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	authHandler *auth.Handler,
	authMiddleware *auth.Middleware,
	health *HealthHandler,
	gatherer prometheus.Gatherer,
	logger *logging.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	// must be set before the /api subrouter is mounted so it inherits it
	r.NotFound(notFoundHandler(cfg.Server.StaticDir))

	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	routes := func(r chi.Router) {
		r.Get("/health", health.ServeHTTP)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/google-auth", authHandler.GoogleAuth)
		r.With(authMiddleware.OptionalAuth).Post("/set-password", authHandler.SetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/me", authHandler.Me)
		})
	}

	r.Group(routes)
	r.Route(apiPrefix, routes)

	return r
}

func notFoundHandler(staticDir string) http.HandlerFunc {
	var spa http.Handler
	if staticDir != "" {
		spa = newSPAHandler(staticDir)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if isAPIPath(r.URL.Path) {
			httputil.RespondErrorWithCode(w, "API endpoint not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		if spa != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			spa.ServeHTTP(w, r)
			return
		}
		httputil.RespondErrorWithCode(w, "Not found", httputil.CodeNotFound, http.StatusNotFound)
	}
}

func isAPIPath(p string) bool {
	return p == apiPrefix || strings.HasPrefix(p, apiPrefix+"/")
}
