// Package http wires the ops-only HTTP surface: liveness/readiness probes,
// Prometheus metrics, and a read-only saga debug lookup. All business event
// flow happens over the broker; this router exists purely for operators and
// orchestrators.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wallethub/eventcore/internal/adapters/http/handlers"
	"github.com/wallethub/eventcore/internal/adapters/http/middleware"
	"github.com/wallethub/eventcore/internal/saga"
)

// RouterConfig configures the ops router.
type RouterConfig struct {
	Logger       *slog.Logger
	Pool         *pgxpool.Pool
	SagaStore    saga.Store
	Version      string
	BuildTime    string
	Environment  string
	TraceEnabled bool
}

// DefaultRouterConfig is a development-oriented default.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:      slog.Default(),
		Version:     "dev",
		BuildTime:   "unknown",
		Environment: "development",
	}
}

// NewRouter builds the gin.Engine serving the ops surface.
func NewRouter(config *RouterConfig) *gin.Engine {
	if config == nil {
		config = DefaultRouterConfig()
	}

	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	if config.TraceEnabled {
		router.Use(otelgin.Middleware("eventcore-ops"))
	}
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           config.Logger,
		EnableStackTrace: config.Environment != "production",
	}))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    config.Logger,
		SkipPaths: []string{"/healthz", "/readyz", "/live", "/metrics"},
	}))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := handlers.NewHealthHandler(config.Pool, config.Version, config.BuildTime)
	healthHandler.RegisterRoutes(router)

	if config.SagaStore != nil {
		sagaHandler := handlers.NewSagaHandler(config.SagaStore)
		sagaHandler.RegisterRoutes(router)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "not found"})
	})

	return router
}
