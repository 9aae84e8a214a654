// Package server exposes the listing and cache-administration endpoints over
// HTTP using Echo, including the outer response-cache middleware.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/listing"
	"github.com/casafind/listingcache/logger"
	"github.com/casafind/listingcache/metrics"
)

// Server wraps the Echo instance with the wired route handlers.
type Server struct {
	echo *echo.Echo
	log  logger.Logger
}

// Deps carries the components the HTTP surface delegates to.
type Deps struct {
	Store       cache.Store
	Repo        listing.Repository
	Service     *listing.Service
	Invalidator *listing.Invalidator
	Collector   *metrics.Collector
}

// New builds the HTTP server with middlewares and routes registered.
func New(log logger.Logger, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.RequestID())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("Panic recovered")
			return err
		},
	}))
	e.Use(requestLogger(log))

	h := &handlers{
		store:       deps.Store,
		repo:        deps.Repo,
		svc:         deps.Service,
		invalidator: deps.Invalidator,
		collector:   deps.Collector,
		log:         log,
	}

	e.GET("/healthz", h.health)

	pageCached := PageCache(deps.Store, log)

	g := e.Group("/properties")
	g.GET("", h.listProperties, pageCached)
	g.GET("/html", h.listPropertiesHTML, pageCached)
	g.POST("", h.createProperty)
	g.PUT("/:id", h.updateProperty)
	g.DELETE("/:id", h.deleteProperty)

	g.GET("/cache-info", h.cacheInfo)
	g.POST("/clear-cache", h.clearCache)
	g.GET("/cache-metrics", h.cacheMetrics)
	g.POST("/reset-metrics", h.resetMetrics)
	g.GET("/monitor-performance", h.monitorPerformance)

	return &Server{echo: e, log: log}
}

// Start begins serving on addr. Blocks until the listener stops.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("HTTP server starting")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router. Intended for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// requestLogger logs each completed request with method, path, status and latency.
func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			log.Info().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("Request completed")

			return err
		}
	}
}
