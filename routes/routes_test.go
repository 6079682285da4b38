package routes

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/address-resolver/app/controllers"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/gazetteer/gazetteertest"
	"github.com/address-resolver/internal/parser"
	"github.com/address-resolver/internal/quality"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reviewStore struct {
	mu      sync.Mutex
	reviews []models.AddressReview
}

func (s *reviewStore) SaveReview(ctx context.Context, review *models.AddressReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, *review)
	return nil
}

func (s *reviewStore) LowRatedReviews(ctx context.Context, maxRating int, limit int) ([]models.AddressReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AddressReview
	for _, r := range s.reviews {
		if r.Rating <= maxRating {
			out = append(out, r)
		}
	}
	return out, nil
}

type testServer struct {
	router  *gin.Engine
	address *services.AddressService
	cache   *services.CacheService
}

func newTestServer(t *testing.T, checks map[string]controllers.HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	reg := prometheus.NewRegistry()
	metrics := services.NewMetrics(reg)
	cache := services.NewCacheService(time.Hour)
	resolver := parser.NewResolver(gazetteertest.Index(t), parser.DefaultResolverConfig(), logger)
	addressService := services.NewAddressService(resolver, cache, nil, metrics, services.AddressServiceConfig{
		Thresholds: models.Thresholds{High: 0.9, ReviewLow: 0.6},
		Workers:    2,
	}, logger)
	adminService := services.NewAdminService(nil, nil, addressService, parser.DefaultResolverConfig(), 0.7, logger)

	tax, err := quality.DefaultTaxonomy()
	require.NoError(t, err)
	qualityService := services.NewQualityService(&reviewStore{}, quality.NewClassifier(tax, logger), addressService, metrics, 2, 2, logger)

	router := gin.New()
	SetupAllRoutes(router, Controllers{
		Address: controllers.NewAddressController(addressService, checks, "test", logger),
		Admin:   controllers.NewAdminController(adminService, addressService, logger),
		Quality: controllers.NewQualityController(qualityService, logger),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, logger)

	return &testServer{router: router, address: addressService, cache: cache}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestResolveEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"address": "Phường Hưng Bình, Thành phố Vinh, Nghệ An", "options": {"return_trace": true}}`

	w := s.do(t, http.MethodPost, "/v1/addresses/resolve", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(controllers.RequestIDKey))

	resp := decode[responses.ResolveResponse](t, w)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, "fixture-2024.1", resp.ReferenceVersion)
	assert.Equal(t, models.StatusMatched, resp.Result.Status)
	require.NotNil(t, resp.Result.Ward)
	assert.Equal(t, "16681", resp.Result.Ward.ID)
	assert.Len(t, resp.Result.Stages, 3)

	w = s.do(t, http.MethodPost, "/v1/addresses/resolve", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[responses.ResolveResponse](t, w).CacheHit)

	// tắt cache
	w = s.do(t, http.MethodPost, "/v1/addresses/resolve", `{"address": "Phường Hưng Bình, Thành phố Vinh, Nghệ An", "options": {"use_cache": false}}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[responses.ResolveResponse](t, w)
	assert.False(t, resp.CacheHit)
	assert.Nil(t, resp.Result.Stages)

	// input rỗng vẫn hợp lệ
	w = s.do(t, http.MethodPost, "/v1/addresses/resolve", `{"address": ""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusUnmatched, decode[responses.ResolveResponse](t, w).Result.Status)
}

func TestResolveEndpoint_BadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/addresses/resolve", strings.NewReader("{not json"))
	req.Header.Set(controllers.RequestIDKey, "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[responses.ErrorResponse](t, w)
	assert.Equal(t, "INVALID_REQUEST", resp.Error)
	assert.Equal(t, "req-123", resp.RequestID)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestJobEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/addresses/jobs", `{"items": [
		{"address": "Phường Hưng Bình, Thành phố Vinh"},
		{"address": "xã thanh hưng", "province": "Nghệ An"},
		{"address": "1234 abc xyz"}
	]}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job := decode[responses.BatchResolveResponse](t, w)
	assert.Equal(t, 3, job.TotalAddresses)

	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/v1/addresses/jobs/"+job.JobID+"/status", "")
		return w.Code == http.StatusOK && decode[responses.JobStatusResponse](t, w).Status == services.JobStatusDone
	}, 5*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/v1/addresses/jobs/"+job.JobID+"/results?format=ndjson&gzip=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	var raws []string
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var res models.AddressResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &res))
		raws = append(raws, res.Raw)
	}
	assert.Equal(t, []string{"Phường Hưng Bình, Thành phố Vinh", "xã thanh hưng", "1234 abc xyz"}, raws)

	w = s.do(t, http.MethodGet, "/v1/addresses/jobs/"+job.JobID+"/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[responses.SuccessResponse](t, w).Success)

	w = s.do(t, http.MethodGet, "/v1/addresses/jobs/missing/results?format=ndjson", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	w = s.do(t, http.MethodGet, "/v1/addresses/jobs/missing/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/addresses/jobs", `{"items": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestEndpoint_Disabled(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/v1/addresses/suggest?q=vinh&level=district", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/v1/addresses/suggest?q=vinh&level=street", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/v1/admin/seed?dry_run=true", string(gazetteertest.YAML()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	seed := decode[responses.SeedReferenceResponse](t, w)
	assert.True(t, seed.ValidationPassed)
	assert.True(t, seed.DryRun)
	assert.Positive(t, seed.UnitsProcessed)

	w = s.do(t, http.MethodPost, "/v1/admin/seed", "version: x\nprovinces:\n  - {id: \"1\", name: Tỉnh A}\n  - {id: \"1\", name: Tỉnh B}\n")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[responses.SeedReferenceResponse](t, w).Warnings)

	w = s.do(t, http.MethodPost, "/v1/admin/seed", "version: x\nunknown_field: 1\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/admin/reference", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[responses.ReferenceInfoResponse](t, w)
	assert.Equal(t, "fixture-2024.1", info.Reference.Version)

	w = s.do(t, http.MethodGet, "/v1/admin/export/admin_units?format=csv&limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "admin_units_export_")
	assert.Len(t, strings.Split(strings.TrimSpace(w.Body.String()), "\n"), 4)

	w = s.do(t, http.MethodGet, "/v1/admin/export/reviews", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/admin/reference/reload", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(t, http.MethodPost, "/v1/admin/meili/publish", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(t, http.MethodPost, "/v1/admin/aliases", `{"admin_id": "40", "alias": "Xứ Nghệ"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/v1/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "memory_usage")
}

func TestInvalidateCacheEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodPost, "/v1/addresses/resolve", `{"address": "Vinh"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, s.cache.Size())

	w = s.do(t, http.MethodPost, "/v1/admin/cache/invalidate", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/admin/cache/invalidate?reference_version=fixture-2024.1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, s.cache.Size())
}

func TestQualityEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/v1/quality/report", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/quality/reviews", `{"address": "CTY TNHH ABC XYZ", "rating": 1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/v1/quality/reviews", `{"address": "Vinh", "rating": 7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/v1/quality/classify", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[quality.Report](t, w)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Counts[quality.CategoryOrganizationalNoise])

	w = s.do(t, http.MethodGet, "/v1/quality/report", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, map[string]controllers.HealthCheck{
		"mongodb": func(ctx context.Context) error { return errors.New("down") },
	})

	w := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[responses.HealthCheckResponse](t, w)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unhealthy", health.Services["mongodb"])
	assert.Equal(t, "fixture-2024.1", health.ReferenceVersion)

	w = s.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = s.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.do(t, http.MethodPost, "/v1/addresses/resolve", `{"address": "Vinh"}`)
	w = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "address_resolutions_total")

	w = s.do(t, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
