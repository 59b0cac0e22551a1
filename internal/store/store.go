// Package store is the durable second tier of the resolution pipeline:
// authoritative, indefinitely retained market data history, written back
// whenever a provider fetch succeeds.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fixedincome/marketdata/internal/config"
	"github.com/fixedincome/marketdata/internal/model"
)

// Store is the narrow persistence contract the pipeline depends on.
// (category, key, observed date, source) is the natural key; StoreSnapshot
// and StoreCategoryMap upsert on it, so repeated write-backs are idempotent.
type Store interface {
	// LatestAsOf returns every record at the most recent observation date
	// at or before asOf for the category, or empty if none exist.
	LatestAsOf(ctx context.Context, category model.Category, asOf time.Time) ([]model.TimeSeriesPoint, error)

	// TimeSeries returns records for one (category, key) pair in the range,
	// ordered by observation date ascending.
	TimeSeries(ctx context.Context, category model.Category, key string, start, end time.Time) ([]model.TimeSeriesPoint, error)

	// StoreSnapshot persists a yield curve decomposed into per-tenor points.
	StoreSnapshot(ctx context.Context, snap model.YieldCurveSnapshot) error

	// StoreCategoryMap persists a keyed value map observed on date.
	StoreCategoryMap(ctx context.Context, category model.Category, m model.CategoryMap, source string, date time.Time) error

	// StorePoints persists individual observations (used for time series).
	StorePoints(ctx context.Context, points []model.TimeSeriesPoint) error

	// PointLookup returns the most recent value at or before asOf for a
	// single (category, key) pair. ok is false when no record exists.
	PointLookup(ctx context.Context, category model.Category, key string, asOf time.Time) (decimal.Decimal, bool, error)

	// PurgeOlderThan bulk-deletes records observed before cutoff and
	// returns the number deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// PurgeAll deletes every record. Operational hook, not a pipeline path.
	PurgeAll(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the configured store backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if cfg.Driver == "postgres" {
		return NewPostgres(ctx, cfg.DatabaseURL)
	}
	return NewSQLite(cfg.SQLitePath)
}
