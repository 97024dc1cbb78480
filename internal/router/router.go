package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/portfolio-lease/internal/config"
	"github.com/iliyamo/portfolio-lease/internal/handler"
	"github.com/iliyamo/portfolio-lease/internal/middleware"
)

// Deps are the handlers and shared clients the routes are built from.
type Deps struct {
	Leases    *handler.LeaseHandler
	Issues    *handler.IssueHandler
	Admin     *handler.AdminHandler
	DB        handler.Pinger
	Gatherer  prometheus.Gatherer
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	JWTSecret string
	Logger    *slog.Logger
}

// RegisterRoutes registers the unauthenticated probes and metrics.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.DB != nil {
		e.GET("/readyz", handler.Ready(d.DB))
	}
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// RegisterLeases registers the authenticated lease, issue and admin routes
// under /v1.  Writes go through the per-user token bucket; admin routes
// also require the admin role.
func RegisterLeases(e *echo.Echo, d Deps) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(d.JWTSecret))
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger)

	g.GET("/leases", d.Leases.List)
	g.DELETE("/leases/mine", d.Leases.ReleaseAll, limit)
	g.POST("/portfolios/:id/lease", d.Leases.Acquire, limit)
	g.DELETE("/portfolios/:id/lease", d.Leases.Release, limit)

	if d.Issues != nil {
		g.POST("/portfolios/:id/issues", d.Issues.Create, limit)
		g.POST("/portfolios/:id/checked", d.Issues.MarkChecked, limit)
	}

	if d.Admin != nil {
		admin := g.Group("/admin", middleware.RequireRole("admin"))
		admin.POST("/sweep", d.Admin.Sweep)
	}
}
