package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/casafind/listingcache/cache"
	"github.com/casafind/listingcache/logger"
)

// PageCacheTTL is the outer response-cache TTL. It must never exceed
// listing.AllPropertiesTTL: outer staleness has to stay bounded by inner
// staleness, otherwise this layer could serve entries even staler than the
// queryset cache implies.
const PageCacheTTL = 15 * time.Minute

// pageCacheKeyPrefix namespaces response-cache entries. Keys under it match
// listing.PageCachePattern, which the invalidator sweeps on ClearAll.
const pageCacheKeyPrefix = "pagecache:"

// cachedResponse is the stored form of a memoized response.
type cachedResponse struct {
	Status      int    `cbor:"1,keyasint"`
	ContentType string `cbor:"2,keyasint"`
	Body        []byte `cbor:"3,keyasint"`
}

// PageCache memoizes successful GET responses keyed by the full request
// identity (method plus URI including the query string). Store failures are
// pass-through in both directions: a failed lookup serves the handler, a
// failed write only logs.
func PageCache(store cache.Store, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}

			key := pageCacheKeyPrefix + req.Method + ":" + req.RequestURI

			if data, err := store.Get(req.Context(), key); err == nil {
				cached, derr := cache.Unmarshal[cachedResponse](data)
				if derr == nil {
					resp := c.Response()
					resp.Header().Set(echo.HeaderContentType, cached.ContentType)
					resp.Header().Set("X-Page-Cache", "HIT")
					resp.WriteHeader(cached.Status)
					_, werr := resp.Write(cached.Body)
					return werr
				}
				log.Warn().Err(derr).Str("key", key).Msg("Discarding undecodable page cache entry")
			} else if !errors.Is(err, cache.ErrNotFound) {
				log.Warn().Err(err).Str("key", key).Msg("Page cache unreachable, serving uncached")
			}

			c.Response().Header().Set("X-Page-Cache", "MISS")

			capture := &captureWriter{ResponseWriter: c.Response().Writer}
			c.Response().Writer = capture

			if err := next(c); err != nil {
				return err
			}

			if c.Response().Status != http.StatusOK {
				return nil
			}

			entry := cachedResponse{
				Status:      c.Response().Status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        capture.buf.Bytes(),
			}
			data, err := cache.Marshal(entry)
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("Failed to encode page cache entry")
				return nil
			}

			// Detached from the request so a client disconnect after the
			// response is written doesn't abort the population.
			if err := store.Set(context.WithoutCancel(req.Context()), key, data, PageCacheTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to populate page cache")
			}

			return nil
		}
	}
}

// captureWriter tees the response body so it can be memoized after the
// handler runs.
type captureWriter struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}
