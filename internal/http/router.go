// Package httpapi wires the Gin engine: middleware order, the operational
// endpoints (/health, /metrics, /swagger) and the versioned CarLog API.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/carlog-backend/docs"
	"github.com/tbourn/carlog-backend/internal/config"
	"github.com/tbourn/carlog-backend/internal/http/handlers"
	"github.com/tbourn/carlog-backend/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. otelgin
//  2. RequestID
//  3. RequestLogger (redacting)
//  4. Recovery
//  5. body limit, gzip
//  6. Metrics
//  7. CORS, security headers
//
// Authenticated routes add Authenticate and the per-user rate limiter; admin
// routes add RequireAdmin.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(middleware.LogOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(authenticate(cfg.JWTSecret))
	api.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())
	{
		api.GET("/vehicles/:id/recommendations", h.GetRecommendations)

		admin := api.Group("/admin", middleware.RequireAdmin())
		admin.POST("/trigger-reminders", h.TriggerReminders)
		admin.GET("/scheduler", h.SchedulerStatus)
		admin.GET("/ai-logs", h.ListAILogs)
	}
}

// authenticate rejects every API call with 503 when no signing secret is
// configured.
func authenticate(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeUnavailable, "authentication not configured")
		}
	}
	return middleware.Authenticate(secret)
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
