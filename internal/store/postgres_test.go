package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedincome/marketdata/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromQuerier(mock), mock
}

func TestPostgresStore_StorePoints_Upserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(category, data_key, data_date, source\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "yield_curve", "10Y", "3.05", "2024-06-03", "FRED", "EUR", "10Y").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.StorePoints(context.Background(), []model.TimeSeriesPoint{
		point(t, "10Y", "3.05", "2024-06-03"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PointLookup_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data_value::text FROM market_data`).
		WithArgs("benchmark_rate", "EUR", "2024-06-03").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := s.PointLookup(context.Background(), model.CategoryBenchmarkRate, "EUR", date(t, "2024-06-03"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PointLookup_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data_value::text FROM market_data`).
		WithArgs("benchmark_rate", "EUR", "2024-06-03").
		WillReturnRows(pgxmock.NewRows([]string{"data_value"}).AddRow("3.75"))

	v, ok, err := s.PointLookup(context.Background(), model.CategoryBenchmarkRate, "EUR", date(t, "2024-06-03"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("3.75")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestAsOf_ScansRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"category", "data_key", "data_value", "data_date", "source", "currency", "tenor"}).
		AddRow("yield_curve", "10Y", "3.05", "2024-06-03", "FRED", "EUR", "10Y").
		AddRow("yield_curve", "2Y", "3.15", "2024-06-03", "FRED", "EUR", "2Y")

	mock.ExpectQuery(`SELECT category, data_key, data_value::text`).
		WithArgs("yield_curve", "2024-06-10").
		WillReturnRows(rows)

	points, err := s.LatestAsOf(context.Background(), model.CategoryYieldCurve, date(t, "2024-06-10"))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "10Y", points[0].Key)
	assert.True(t, points[1].Value.Equal(decimal.RequireFromString("3.15")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeOlderThan(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM market_data WHERE data_date < \$1`).
		WithArgs("2024-01-01").
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	n, err := s.PurgeOlderThan(context.Background(), date(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
