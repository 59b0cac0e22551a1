package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedincome/marketdata/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateFormat, s)
	require.NoError(t, err)
	return d
}

func point(t *testing.T, key, value, day string) model.TimeSeriesPoint {
	t.Helper()
	return model.TimeSeriesPoint{
		Category:     model.CategoryYieldCurve,
		Key:          key,
		Value:        decimal.RequireFromString(value),
		ObservedDate: date(t, day),
		Source:       "FRED",
		Currency:     "EUR",
		Tenor:        key,
	}
}

func TestSQLite_StorePoints_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.StorePoints(ctx, []model.TimeSeriesPoint{
		point(t, "10Y", "3.05", "2024-06-03"),
		point(t, "2Y", "3.15", "2024-06-03"),
	})
	require.NoError(t, err)

	points, err := st.LatestAsOf(ctx, model.CategoryYieldCurve, date(t, "2024-06-10"))
	require.NoError(t, err)
	require.Len(t, points, 2)

	byKey := map[string]model.TimeSeriesPoint{}
	for _, p := range points {
		byKey[p.Key] = p
	}
	assert.True(t, byKey["10Y"].Value.Equal(decimal.RequireFromString("3.05")))
	assert.Equal(t, "EUR", byKey["10Y"].Currency)
	assert.Equal(t, "FRED", byKey["10Y"].Source)
}

func TestSQLite_StorePoints_UpsertIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := point(t, "10Y", "3.05", "2024-06-03")
	require.NoError(t, st.StorePoints(ctx, []model.TimeSeriesPoint{p}))

	// Same natural key, new value. Must update, not duplicate.
	p.Value = decimal.RequireFromString("3.10")
	require.NoError(t, st.StorePoints(ctx, []model.TimeSeriesPoint{p}))

	points, err := st.LatestAsOf(ctx, model.CategoryYieldCurve, date(t, "2024-06-03"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Value.Equal(decimal.RequireFromString("3.10")))
}

func TestSQLite_LatestAsOf_PicksNewestDateGroup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StorePoints(ctx, []model.TimeSeriesPoint{
		point(t, "10Y", "3.00", "2024-06-01"),
		point(t, "10Y", "3.05", "2024-06-05"),
		point(t, "10Y", "3.20", "2024-06-10"),
	}))

	// As-of between observations returns the newest at or before.
	points, err := st.LatestAsOf(ctx, model.CategoryYieldCurve, date(t, "2024-06-07"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Value.Equal(decimal.RequireFromString("3.05")))

	// As-of before everything returns empty.
	points, err = st.LatestAsOf(ctx, model.CategoryYieldCurve, date(t, "2024-05-01"))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestSQLite_TimeSeries_OrderedAscending(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StorePoints(ctx, []model.TimeSeriesPoint{
		point(t, "10Y", "3.20", "2024-06-10"),
		point(t, "10Y", "3.00", "2024-06-01"),
		point(t, "10Y", "3.05", "2024-06-05"),
		point(t, "2Y", "3.50", "2024-06-05"), // different key, excluded
	}))

	points, err := st.TimeSeries(ctx, model.CategoryYieldCurve, "10Y",
		date(t, "2024-06-01"), date(t, "2024-06-10"))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-06-01", points[0].ObservedDate.Format(model.DateFormat))
	assert.Equal(t, "2024-06-10", points[2].ObservedDate.Format(model.DateFormat))
}

func TestSQLite_PointLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StorePoints(ctx, []model.TimeSeriesPoint{
		point(t, "10Y", "3.00", "2024-06-01"),
		point(t, "10Y", "3.05", "2024-06-05"),
	}))

	v, ok, err := st.PointLookup(ctx, model.CategoryYieldCurve, "10Y", date(t, "2024-06-30"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("3.05")))

	_, ok, err = st.PointLookup(ctx, model.CategoryYieldCurve, "5Y", date(t, "2024-06-30"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_StoreSnapshot(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	snap := model.YieldCurveSnapshot{
		Date:   date(t, "2024-06-03"),
		Source: "FRED",
		Yields: map[string]decimal.Decimal{
			"2Y":  decimal.RequireFromString("3.15"),
			"10Y": decimal.RequireFromString("3.05"),
		},
	}
	require.NoError(t, st.StoreSnapshot(ctx, snap))

	points, err := st.LatestAsOf(ctx, model.CategoryYieldCurve, date(t, "2024-06-03"))
	require.NoError(t, err)
	rebuilt, ok := model.BuildSnapshot(points)
	require.True(t, ok)
	assert.Equal(t, "FRED", rebuilt.Source)
	assert.True(t, rebuilt.Yields["10Y"].Equal(decimal.RequireFromString("3.05")))
}

func TestSQLite_StoreCategoryMap(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m := model.CategoryMap{
		"AAA": decimal.RequireFromString("25"),
		"BBB": decimal.RequireFromString("150"),
	}
	require.NoError(t, st.StoreCategoryMap(ctx, model.CategoryCreditSpread, m, "PROVIDER", date(t, "2024-06-03")))

	v, ok, err := st.PointLookup(ctx, model.CategoryCreditSpread, "BBB", date(t, "2024-06-03"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("150")))
}

func TestSQLite_Purge(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StorePoints(ctx, []model.TimeSeriesPoint{
		point(t, "10Y", "3.00", "2023-01-01"),
		point(t, "10Y", "3.05", "2024-06-05"),
	}))

	n, err := st.PurgeOlderThan(ctx, date(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = st.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	points, err := st.LatestAsOf(ctx, model.CategoryYieldCurve, date(t, "2024-12-31"))
	require.NoError(t, err)
	assert.Empty(t, points)
}
