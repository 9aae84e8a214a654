package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casafind/listingcache/cache/cachetest"
	"github.com/casafind/listingcache/listing"
	"github.com/casafind/listingcache/logger"
	"github.com/casafind/listingcache/metrics"
	"github.com/casafind/listingcache/server"
)

// memRepo is an in-memory Repository publishing events like a real backend.
type memRepo struct {
	mu        sync.Mutex
	listings  []listing.Listing
	bus       *listing.Bus
	listCalls int
}

func (r *memRepo) List(_ context.Context) ([]listing.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := make([]listing.Listing, len(r.listings))
	copy(out, r.listings)
	return out, nil
}

func (r *memRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.listings)), nil
}

func (r *memRepo) Create(ctx context.Context, fields listing.Fields) (*listing.Listing, error) {
	l := listing.Listing{
		ID:          uuid.New(),
		Title:       fields.Title,
		Description: fields.Description,
		Price:       fields.Price,
		Location:    fields.Location,
		CreatedAt:   time.Now().UTC(),
	}
	r.mu.Lock()
	r.listings = append([]listing.Listing{l}, r.listings...)
	r.mu.Unlock()

	r.bus.Publish(ctx, listing.Event{Op: listing.OpCreated, Listing: l})
	return &l, nil
}

func (r *memRepo) Update(ctx context.Context, id uuid.UUID, fields listing.Fields) (*listing.Listing, error) {
	r.mu.Lock()
	for i, l := range r.listings {
		if l.ID == id {
			l.Title = fields.Title
			l.Description = fields.Description
			l.Price = fields.Price
			l.Location = fields.Location
			r.listings[i] = l
			r.mu.Unlock()
			r.bus.Publish(ctx, listing.Event{Op: listing.OpUpdated, Listing: l})
			return &l, nil
		}
	}
	r.mu.Unlock()
	return nil, listing.ErrNotFound
}

func (r *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	for i, l := range r.listings {
		if l.ID == id {
			r.listings = append(r.listings[:i], r.listings[i+1:]...)
			r.mu.Unlock()
			r.bus.Publish(ctx, listing.Event{Op: listing.OpDeleted, Listing: l})
			return nil
		}
	}
	r.mu.Unlock()
	return listing.ErrNotFound
}

type fixture struct {
	store *cachetest.Store
	repo  *memRepo
	srv   *server.Server
}

func newFixture(t *testing.T, seed ...listing.Listing) *fixture {
	t.Helper()

	store := cachetest.New()
	bus := listing.NewBus()
	repo := &memRepo{listings: seed, bus: bus}
	log := logger.NewDiscard()

	svc := listing.NewService(store, repo, log)
	inv := listing.NewInvalidator(store, log)
	inv.Register(bus)

	srv := server.New(log, server.Deps{
		Store:       store,
		Repo:        repo,
		Service:     svc,
		Invalidator: inv,
		Collector:   metrics.NewCollector(store, log),
	})

	return &fixture{store: store, repo: repo, srv: srv}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.srv.Echo().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func seedListing(title string) listing.Listing {
	return listing.Listing{
		ID:        uuid.New(),
		Title:     title,
		Price:     "250000.00",
		Location:  "Utrecht",
		CreatedAt: time.Now().UTC(),
	}
}

func TestListPropertiesJSON(t *testing.T) {
	f := newFixture(t, seedListing("one"), seedListing("two"))

	rec := f.do(http.MethodGet, "/properties", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count      int               `json:"count"`
		Properties []listing.Listing `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Properties, 2)
	assert.Equal(t, "MISS", rec.Header().Get("X-Page-Cache"))
}

func TestListPropertiesServedFromPageCache(t *testing.T) {
	f := newFixture(t, seedListing("one"))

	first := f.do(http.MethodGet, "/properties", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(http.MethodGet, "/properties", "")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Page-Cache"))
	assert.Equal(t, 1, f.repo.listCalls, "page cache hit must not reach the repository")
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestListPropertiesHTML(t *testing.T) {
	f := newFixture(t, seedListing("Canal House"))

	rec := f.do(http.MethodGet, "/properties/html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Canal House")
	assert.Contains(t, rec.Header().Get(echoHeaderContentType), "text/html")
}

func TestCreateProperty(t *testing.T) {
	f := newFixture(t)

	// Warm the caches, then create; both layers must be invalidated.
	f.do(http.MethodGet, "/properties", "")
	require.True(t, f.store.Has("pagecache:GET:/properties"))

	rec := f.do(http.MethodPost, "/properties",
		`{"title":"New Loft","description":"top floor","price":"425000.50","location":"Rotterdam"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created listing.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "425000.50", created.Price)

	assert.False(t, f.store.Has(listing.KeyAllProperties))
	assert.False(t, f.store.Has(listing.KeyPropertyCount))
}

func TestCreatePropertyValidation(t *testing.T) {
	f := newFixture(t)

	cases := []string{
		`{"title":"","price":"100.00"}`,          // missing title
		`{"title":"Loft","price":"not-a-price"}`, // non-numeric price
		`{"title":"Loft"}`,                       // missing price
		`{not json`,                              // malformed body
	}

	for _, body := range cases {
		rec := f.do(http.MethodPost, "/properties", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body=%s", body)
	}
}

func TestUpdateProperty(t *testing.T) {
	seed := seedListing("before")
	f := newFixture(t, seed)

	// Warm the queryset cache; the update must invalidate it.
	f.do(http.MethodGet, "/properties", "")
	require.True(t, f.store.Has(listing.KeyAllProperties))

	rec := f.do(http.MethodPut, "/properties/"+seed.ID.String(),
		`{"title":"after","price":"300000.00","location":"Leiden"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated listing.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, seed.ID, updated.ID)
	assert.Equal(t, "after", updated.Title)
	assert.False(t, f.store.Has(listing.KeyAllProperties))

	rec = f.do(http.MethodPut, "/properties/"+uuid.NewString(),
		`{"title":"ghost","price":"1.00"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProperty(t *testing.T) {
	seed := seedListing("doomed")
	f := newFixture(t, seed)

	rec := f.do(http.MethodDelete, "/properties/"+seed.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodDelete, "/properties/"+seed.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/properties/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheInfo(t *testing.T) {
	f := newFixture(t, seedListing("one"))
	f.do(http.MethodGet, "/properties", "")

	rec := f.do(http.MethodGet, "/properties/cache-info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		NamedKeys map[string]bool      `json:"named_keys"`
		Inventory metrics.KeyInventory `json:"inventory"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.NamedKeys[listing.KeyAllProperties])
	assert.NotZero(t, body.Inventory.TotalKeys)
	assert.Contains(t, body.Inventory.Buckets, "properties")
}

func TestClearCache(t *testing.T) {
	f := newFixture(t, seedListing("one"))
	f.do(http.MethodGet, "/properties", "")
	require.True(t, f.store.Has(listing.KeyAllProperties))

	rec := f.do(http.MethodPost, "/properties/clear-cache", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.False(t, f.store.Has(listing.KeyAllProperties))
	assert.False(t, f.store.Has("pagecache:GET:/properties"))
}

func TestCacheMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.store.SetServerStats(90, 10)

	rec := f.do(http.MethodGet, "/properties/cache-metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Metrics       metrics.Snapshot `json:"metrics"`
		Effectiveness metrics.Grade    `json:"effectiveness"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 0.9, body.Metrics.HitRatio, 1e-9)
	assert.Equal(t, "A+", body.Effectiveness.Grade)
}

func TestResetMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.store.SetServerStats(5, 5)

	rec := f.do(http.MethodPost, "/properties/reset-metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	info, err := f.store.Info(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.KeyspaceHits)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, f.store.Close())
	rec = f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMonitorPerformanceEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/properties/monitor-performance?samples=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report metrics.LoadReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 10, report.Samples)
	assert.Equal(t, 10, report.Misses)

	keys, err := f.store.ScanKeys(context.Background(), "loadprobe:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	rec = f.do(http.MethodGet, "/properties/monitor-performance?samples=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
