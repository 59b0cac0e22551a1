package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedincome/marketdata/internal/cache"
	"github.com/fixedincome/marketdata/internal/model"
	"github.com/fixedincome/marketdata/internal/provider"
	"github.com/fixedincome/marketdata/internal/resolver"
	"github.com/fixedincome/marketdata/internal/store"
)

// deadProvider always fails, pushing every resolution to the fallback tier.
type deadProvider struct{}

func (deadProvider) FetchLatestCurve(ctx context.Context) (model.YieldCurveSnapshot, error) {
	return model.YieldCurveSnapshot{}, eris.New("down")
}

func (deadProvider) FetchHistoricalCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	return model.YieldCurveSnapshot{}, eris.New("down")
}

func (deadProvider) FetchCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error) {
	return nil, eris.New("down")
}

func (deadProvider) FetchTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	return nil, eris.New("down")
}

func (deadProvider) FetchCreditSpreads(ctx context.Context) (model.CategoryMap, error) {
	return nil, eris.New("down")
}

func (deadProvider) FetchBenchmarkRates(ctx context.Context) (model.CategoryMap, error) {
	return nil, eris.New("down")
}

func (deadProvider) FetchInflationExpectations(ctx context.Context, region string) (model.CategoryMap, error) {
	return nil, eris.New("down")
}

func (deadProvider) FetchSectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error) {
	return nil, eris.New("down")
}

func (deadProvider) FetchLiquidityPremiums(ctx context.Context) (model.CategoryMap, error) {
	return nil, eris.New("down")
}

func (deadProvider) Healthy(ctx context.Context) bool { return false }
func (deadProvider) Name() string                     { return "dead" }
func (deadProvider) SupportedTenors() []string        { return model.Tenors }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	orch := provider.NewOrchestrator(deadProvider{}, nil)
	svc := resolver.NewService(st, orch, cache.NewPools(cache.Config{}))
	return NewServer(svc)
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["provider_available"])
}

func TestLatestCurve_ServedFromFallback(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/curves/latest")

	require.Equal(t, http.StatusOK, rec.Code)
	var snap model.YieldCurveSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, model.SourceFallback, snap.Source)
	assert.NotEmpty(t, snap.Yields)
}

func TestHistoricalCurve(t *testing.T) {
	srv := newTestServer(t)

	day := model.Today().AddDate(0, 0, -10).Format(model.DateFormat)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/curves/"+day)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/curves/not-a-date")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	future := model.Today().AddDate(0, 0, 10).Format(model.DateFormat)
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/curves/"+future)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurveBatch(t *testing.T) {
	srv := newTestServer(t)

	d1 := model.Today().AddDate(0, 0, -1).Format(model.DateFormat)
	d2 := model.Today().AddDate(0, 0, -2).Format(model.DateFormat)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/curves/batch?dates="+d1+","+d2)
	require.Equal(t, http.StatusOK, rec.Code)

	var curves []model.YieldCurveSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &curves))
	assert.Len(t, curves, 2)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/curves/batch")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeSeries(t *testing.T) {
	srv := newTestServer(t)

	start := model.Today().AddDate(0, 0, -30).Format(model.DateFormat)
	end := model.Today().Format(model.DateFormat)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/timeseries?tenor=10Y&start="+start+"&end="+end)
	require.Equal(t, http.StatusOK, rec.Code)

	var points []model.TimeSeriesPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Empty(t, points, "empty history is a valid 200 response")

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/timeseries?tenor=45Y&start="+start+"&end="+end)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/timeseries?tenor=10Y")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReferenceEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/api/v1/spreads",
		"/api/v1/spreads/sector/TECH",
		"/api/v1/rates",
		"/api/v1/inflation/EUR",
		"/api/v1/liquidity",
	} {
		rec := doRequest(t, srv, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var m model.CategoryMap
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), path)
		assert.NotEmpty(t, m, path)
	}
}

func TestProviderHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health/providers")

	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status["dead"])
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/admin/cache")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/admin/data")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["deleted"])
}
