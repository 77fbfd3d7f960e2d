package handler

import (
	"github.com/labstack/echo/v4"

	"ark-proxy-go/internal/config"
	"ark-proxy-go/internal/metrics"
	"ark-proxy-go/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance. The metrics
// endpoint is registered only when enabled and m is non-nil.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, files *StaticHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)
	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	cors := middleware.CORS()
	e.OPTIONS("/api/text", proxy.Preflight, cors)
	e.POST("/api/text", proxy.Text, cors)
	e.OPTIONS("/api/image", proxy.Preflight, cors)
	e.POST("/api/image", proxy.Image, cors)

	e.GET("/*", files.Serve)
	// Without this echo answers OPTIONS on any routed path with 204.
	e.OPTIONS("/*", methodNotAllowed)
}

func methodNotAllowed(echo.Context) error {
	return echo.ErrMethodNotAllowed
}
