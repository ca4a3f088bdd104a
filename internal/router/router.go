// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-reservation/internal/config"
	"github.com/iliyamo/library-reservation/internal/handler"
	"github.com/iliyamo/library-reservation/internal/metrics"
	"github.com/iliyamo/library-reservation/internal/middleware"
	"github.com/iliyamo/library-reservation/internal/model"
)

// Deps carries what route registration needs besides the handlers.
type Deps struct {
	JWTSecret string
	Accounts  middleware.AccountLookup
	DB        handler.Pinger
	Redis     *redis.Client // nil disables rate limiting and caching
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// NewEcho returns an Echo instance with request ids, panic recovery,
// structured request logging and the request validator installed.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Error("request", append(attrs, "error", v.Error.Error())...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}))
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.DB != nil {
		e.GET("/readyz", handler.Ready(d.DB))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers /api/auth.  Credential endpoints are rate
// limited; /me requires a valid token of any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, d Deps) {
	g := e.Group("/api/auth")
	limited := middleware.NewTokenBucket(d.RateLimit, d.Redis)
	g.POST("/login", a.Login, limited)
	g.POST("/register", a.Register, limited)
	g.POST("/refresh", a.Refresh, limited)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, guard(d, model.RoleMember, model.RoleLibrarian, model.RoleAdmin)...)
}

// guard authenticates the bearer token, enforces roles and re-checks
// that the account is still active.
func guard(d Deps, roles ...model.Role) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(roles...),
		middleware.RequireActive(d.Accounts),
	}
}
