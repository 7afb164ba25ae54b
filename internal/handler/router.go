package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/observability"
	"github.com/boddenberg/iptu-bfa-go/internal/infra/ratelimit"
	"github.com/boddenberg/iptu-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one dependency for GET /healthz. A nil Check only
// reports the dependency as present.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators the router needs.
type Deps struct {
	Service        *service.IPTUService
	Limiter        *ratelimit.Limiter
	Metrics        *observability.Metrics
	AllowedOrigins []string
	HealthChecks   []HealthCheck
	Logger         *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger, d.Metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     d.AllowedOrigins,
		AllowedMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type", "Authorization", "X-Session-Id", "X-Correlation-Id"},
		ExposedHeaders:     []string{"X-Correlation-Id", "Retry-After"},
		AllowCredentials:   true,
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(OriginGuard(d.AllowedOrigins))
	r.Use(middleware.Heartbeat("/ping"))

	r.MethodNotAllowed(methodNotAllowed(r))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.HealthChecks, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		open := r.With(RateLimitMiddleware(d.Limiter, false, logger))
		critical := r.With(RateLimitMiddleware(d.Limiter, true, logger))

		// Imóveis
		open.Get("/imoveis", listPropertiesHandler(d.Service, logger))
		open.Post("/imoveis/pesquisa", searchPropertiesHandler(d.Service, logger))

		// Débitos
		critical.Get("/debitos", lookupDebtsHandler(d.Service, logger))

		// Simulação
		critical.Post("/simulacao", simulateHandler(d.Service, logger))
		critical.Post("/simulacao/repactuacao", renegotiationHandler(d.Service, logger))

		// Emissão
		critical.Post("/emissao", issueHandler(d.Service, logger))

		// Métricas
		open.Get("/metrics/routes", routeMetricsHandler(d.Metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LastChecked: now},
		}
		overall := "healthy"
		for _, c := range checks {
			sh := domain.ServiceHealth{Name: c.Name, Status: "healthy", LastChecked: now}
			if c.Check != nil {
				if err := c.Check(ctx); err != nil {
					sh.Status = "degraded"
					sh.Detail = err.Error()
					overall = "degraded"
					logger.Warn("health check failed", zap.String("dependency", c.Name), zap.Error(err))
				}
			}
			services = append(services, sh)
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func routeMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"correlationId": observability.CorrelationID(r.Context()),
			"rotas":         nonNil(metrics.RouteSnapshot()),
		})
	}
}
