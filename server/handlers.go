package server

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/listing"
	"github.com/casafind/listingcache/logger"
	"github.com/casafind/listingcache/metrics"
)

// Synthetic load sampling bounds for the monitor endpoint.
const (
	defaultLoadSamples = 100
	maxLoadSamples     = 1000
)

type handlers struct {
	store       cache.Store
	repo        listing.Repository
	svc         *listing.Service
	invalidator *listing.Invalidator
	collector   *metrics.Collector
	log         logger.Logger
}

// createListingRequest is the inbound payload for POST /properties.
type createListingRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Price       string `json:"price" validate:"required,number"`
	Location    string `json:"location" validate:"max=100"`
}

// listResponse is the JSON shape of GET /properties.
type listResponse struct {
	Count      int               `json:"count"`
	Properties []listing.Listing `json:"properties"`
	CacheInfo  cacheInfoBlock    `json:"cache_info"`
}

type cacheInfoBlock struct {
	PageCacheTTL     string  `json:"page_cache_ttl"`
	QuerysetCacheTTL string  `json:"queryset_cache_ttl"`
	ResponseSeconds  float64 `json:"response_time_seconds"`
}

func (h *handlers) listProperties(c echo.Context) error {
	start := time.Now()

	listings, err := h.svc.GetAll(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}
	if listings == nil {
		listings = []listing.Listing{}
	}

	return c.JSON(http.StatusOK, listResponse{
		Count:      len(listings),
		Properties: listings,
		CacheInfo: cacheInfoBlock{
			PageCacheTTL:     PageCacheTTL.String(),
			QuerysetCacheTTL: listing.AllPropertiesTTL.String(),
			ResponseSeconds:  time.Since(start).Seconds(),
		},
	})
}

var listTemplate = template.Must(template.New("list").Parse(`<!DOCTYPE html>
<html>
<head><title>Property Listings</title></head>
<body>
<h1>Property Listings ({{.Count}})</h1>
<ul>
{{range .Properties}}<li>{{.Title}} &mdash; {{.Price}} ({{.Location}})</li>
{{end}}</ul>
</body>
</html>
`))

func (h *handlers) listPropertiesHTML(c echo.Context) error {
	ctx := c.Request().Context()

	listings, err := h.svc.GetAll(ctx)
	if err != nil {
		return mapDomainError(err)
	}
	count, err := h.svc.GetCount(ctx)
	if err != nil {
		return mapDomainError(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return listTemplate.Execute(c.Response(), map[string]any{
		"Count":      count,
		"Properties": listings,
	})
}

func (h *handlers) createProperty(c echo.Context) error {
	var req createListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	created, err := h.repo.Create(c.Request().Context(), listing.Fields{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Location:    req.Location,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusCreated, created)
}

func (h *handlers) updateProperty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id")
	}

	var req createListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.repo.Update(c.Request().Context(), id, listing.Fields{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Location:    req.Location,
	})
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteProperty(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid listing id")
	}

	if err := h.repo.Delete(c.Request().Context(), id); err != nil {
		return mapDomainError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// health reports liveness of the cache store. The repository is deliberately
// not checked: reads survive a store outage but not a repository outage, and
// orchestrators should not recycle the process for a condition it degrades
// through gracefully.
func (h *handlers) health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"cache":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handlers) cacheInfo(c echo.Context) error {
	ctx := c.Request().Context()

	presence := map[string]bool{}
	for _, key := range []string{listing.KeyAllProperties, listing.KeyPropertyCount} {
		_, err := h.store.Get(ctx, key)
		presence[key] = err == nil
	}

	inventory, err := h.collector.ListKeys(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Key enumeration failed")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"named_keys": presence,
		"inventory":  inventory,
		"endpoints": map[string]string{
			"properties_json":     "/properties",
			"properties_html":     "/properties/html",
			"health":              "/healthz",
			"cache_info":          "/properties/cache-info",
			"clear_cache":         "/properties/clear-cache",
			"cache_metrics":       "/properties/cache-metrics",
			"reset_metrics":       "/properties/reset-metrics",
			"monitor_performance": "/properties/monitor-performance",
		},
	})
}

func (h *handlers) clearCache(c echo.Context) error {
	cleared, err := h.invalidator.ClearAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cache store unreachable")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"cleared": cleared,
	})
}

func (h *handlers) cacheMetrics(c echo.Context) error {
	snap := h.collector.Snapshot(c.Request().Context())
	grade := h.collector.Grade(snap)

	return c.JSON(http.StatusOK, map[string]any{
		"metrics":       snap,
		"effectiveness": grade,
	})
}

func (h *handlers) resetMetrics(c echo.Context) error {
	ok := h.collector.ResetCounters(c.Request().Context())

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{"success": ok})
}

func (h *handlers) monitorPerformance(c echo.Context) error {
	samples := defaultLoadSamples
	if raw := c.QueryParam("samples"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "samples must be a positive integer")
		}
		samples = min(n, maxLoadSamples)
	}

	report := h.collector.SampleSyntheticLoad(c.Request().Context(), samples)
	return c.JSON(http.StatusOK, report)
}

// mapDomainError converts domain errors to HTTP responses. Repository
// unavailability is the only fatal read error; cache failures never reach
// this point because the service degrades them.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, listing.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "listing not found")
	case errors.Is(err, listing.ErrRepositoryUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persistent store unavailable")
	default:
		return err
	}
}
