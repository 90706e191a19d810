package server

import (
	"log/slog"
	"net/http"
	"time"

	"hrgate-backend/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires HTTP routes and middleware.
func NewRouter(
	logger *slog.Logger,
	tokens TokenAuthenticator,
	health handler.HealthHandler,
	auth handler.AuthHandler,
	attendance handler.AttendanceHandler,
	geo handler.GeoLocationHandler,
	regularization handler.RegularizationHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Erp-Uid", "X-Erp-Password"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(200, 1*time.Minute))

	health.RegisterRoutes(r)
	auth.RegisterRoutes(r)
	geo.RegisterPublicRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(tokens))
		auth.RegisterProtectedRoutes(pr)
		attendance.RegisterRoutes(pr)
		attendance.RegisterAdminRoutes(pr)
		geo.RegisterRoutes(pr)
		regularization.RegisterRoutes(pr)
	})

	return otelhttp.NewHandler(r, "hrgate")
}
