package httpapi

import (
	"expvar"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"replacechain/docs/schema/openapi"
)

// RouterOption customises NewRouter.
type RouterOption func(*routerConfig)

type routerConfig struct {
	logger         *slog.Logger
	metricsHandler http.Handler
	accessLog      bool
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsHandler replaces the default promhttp handler behind /metrics.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(c *routerConfig) {
		if h != nil {
			c.metricsHandler = h
		}
	}
}

// WithAccessLog enables gin's request logger.
func WithAccessLog(enabled bool) RouterOption {
	return func(c *routerConfig) { c.accessLog = enabled }
}

// NewRouter builds the HTTP surface:
//
//	POST /v1/replacements
//	POST /v1/replacements/bulk
//	GET  /v1/products
//	GET  /v1/products/:name/latest
//	GET  /v1/latest?name=
//	GET  /v1/mappings
//	GET  /healthz
//	GET  /metrics
//	GET  /debug/vars
//	GET  /openapi.yaml
func NewRouter(svc Service, opts ...RouterOption) *gin.Engine {
	cfg := routerConfig{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		metricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.accessLog {
		router.Use(gin.Logger())
	}

	handlers := NewHandlers(svc, cfg.logger)
	RegisterRoutes(router.Group("/v1"), handlers)

	router.GET("/healthz", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(cfg.metricsHandler))
	router.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	router.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openapi.Spec())
	})
	return router
}

// RegisterRoutes mounts the replacement endpoints on rg.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	replacements := rg.Group("/replacements")
	{
		replacements.POST("", handlers.HandleAddReplacement)
		replacements.POST("/bulk", handlers.HandleBulkLoad)
	}

	products := rg.Group("/products")
	{
		products.GET("", handlers.HandleListProducts)
		products.GET("/:name/latest", handlers.HandleLatest)
	}

	rg.GET("/latest", handlers.HandleLatest)
	rg.GET("/mappings", handlers.HandleMappings)
}
