// Package resolver composes the resolution tiers into the pipeline callers
// use: fast cache, then durable store, then external providers with
// write-back, then static fallback. Input is validated once at entry;
// after that, tier failures mean "try the next tier", never a caller error.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fixedincome/marketdata/internal/cache"
	"github.com/fixedincome/marketdata/internal/fallback"
	"github.com/fixedincome/marketdata/internal/marketdata"
	"github.com/fixedincome/marketdata/internal/model"
	"github.com/fixedincome/marketdata/internal/provider"
	"github.com/fixedincome/marketdata/internal/store"
)

// Service is the resolution pipeline facade.
type Service struct {
	store     store.Store
	providers *provider.Orchestrator
	fallback  *fallback.Resolver
	caches    *cache.Pools
	log       *zap.Logger
}

// NewService wires the tiers together.
func NewService(st store.Store, orch *provider.Orchestrator, pools *cache.Pools) *Service {
	return &Service{
		store:     st,
		providers: orch,
		fallback:  fallback.NewResolver(),
		caches:    pools,
		log:       zap.L().With(zap.String("component", "resolver")),
	}
}

// writeBackSnapshot persists provider data best effort. A failed write-back
// never fails the resolution that produced the data.
func (s *Service) writeBackSnapshot(ctx context.Context, snap model.YieldCurveSnapshot) {
	if err := s.store.StoreSnapshot(ctx, snap); err != nil {
		s.log.Warn("curve write-back failed",
			zap.String("date", snap.Date.Format(model.DateFormat)),
			zap.Error(err),
		)
	}
}

func (s *Service) writeBackMap(ctx context.Context, category model.Category, m model.CategoryMap, source string) {
	if err := s.store.StoreCategoryMap(ctx, category, m, source, model.Today()); err != nil {
		s.log.Warn("reference write-back failed",
			zap.String("category", string(category)),
			zap.Error(err),
		)
	}
}

// storedCurve reads the most recent curve at or before asOf from the durable
// tier. When latestOnly is set, only a curve observed today counts; older
// data defers to the providers, which will refresh the store on success.
func (s *Service) storedCurve(ctx context.Context, asOf time.Time, latestOnly bool) (model.YieldCurveSnapshot, bool) {
	points, err := s.store.LatestAsOf(ctx, model.CategoryYieldCurve, asOf)
	if err != nil {
		s.log.Warn("store curve lookup failed", zap.Error(err))
		return model.YieldCurveSnapshot{}, false
	}
	snap, ok := model.BuildSnapshot(points)
	if !ok {
		return model.YieldCurveSnapshot{}, false
	}
	if latestOnly && !snap.Date.Equal(model.Today()) {
		return model.YieldCurveSnapshot{}, false
	}
	return snap, true
}

func (s *Service) resolveCurve(ctx context.Context, date time.Time, latest bool) model.YieldCurveSnapshot {
	if snap, ok := s.storedCurve(ctx, date, latest); ok {
		return snap
	}

	var snap model.YieldCurveSnapshot
	var err error
	if latest {
		snap, err = s.providers.FetchLatestCurve(ctx)
	} else {
		snap, err = s.providers.FetchHistoricalCurve(ctx, date)
	}
	if err == nil {
		s.writeBackSnapshot(ctx, snap)
		return snap
	}
	s.log.Warn("provider curve fetch failed, using fallback",
		zap.String("date", date.Format(model.DateFormat)),
		zap.Error(err),
	)

	return s.fallback.YieldCurve("", date)
}

// LatestYieldCurve resolves the current-day term structure. It cannot fail:
// the fallback tier guarantees a non-empty curve.
func (s *Service) LatestYieldCurve(ctx context.Context) (model.YieldCurveSnapshot, error) {
	return cache.GetOrCompute(ctx, s.caches.Curves, "curve:latest",
		func(ctx context.Context) (model.YieldCurveSnapshot, error) {
			return s.resolveCurve(ctx, model.Today(), true), nil
		})
}

// HistoricalYieldCurve resolves the term structure as of a past date.
func (s *Service) HistoricalYieldCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	if err := model.ValidateDate(date); err != nil {
		return model.YieldCurveSnapshot{}, err
	}
	date = model.Midnight(date)
	key := "curve:" + date.Format(model.DateFormat)
	return cache.GetOrCompute(ctx, s.caches.Curves, key,
		func(ctx context.Context) (model.YieldCurveSnapshot, error) {
			return s.resolveCurve(ctx, date, false), nil
		})
}

// YieldCurvesForDates resolves one curve per requested date. Each date goes
// through the full pipeline independently, so mixed tier origins in one
// batch are normal.
func (s *Service) YieldCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error) {
	if err := model.ValidateDates(dates); err != nil {
		return nil, err
	}
	out := make([]model.YieldCurveSnapshot, 0, len(dates))
	for _, date := range dates {
		snap, err := s.HistoricalYieldCurve(ctx, date)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// YieldTimeSeries resolves historical observations for one tenor. The
// fallback tier is deliberately absent: an empty series is a valid answer,
// synthesized history is not.
func (s *Service) YieldTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	if err := model.ValidateTenor(tenor); err != nil {
		return nil, err
	}
	if err := model.ValidateDateRange(start, end); err != nil {
		return nil, err
	}
	start, end = model.Midnight(start), model.Midnight(end)

	key := fmt.Sprintf("series:%s:%s:%s", tenor, start.Format(model.DateFormat), end.Format(model.DateFormat))
	return cache.GetOrCompute(ctx, s.caches.TimeSeries, key,
		func(ctx context.Context) ([]model.TimeSeriesPoint, error) {
			points, err := s.store.TimeSeries(ctx, model.CategoryYieldCurve, tenor, start, end)
			if err != nil {
				s.log.Warn("store series lookup failed", zap.Error(err))
			} else if len(points) > 0 {
				return points, nil
			}

			points, err = s.providers.FetchTimeSeries(ctx, tenor, start, end)
			if err != nil {
				if marketdata.IsInvalidInput(err) {
					return nil, err
				}
				s.log.Warn("provider series fetch failed, returning empty",
					zap.String("tenor", tenor),
					zap.Error(err),
				)
				return []model.TimeSeriesPoint{}, nil
			}
			if err := s.store.StorePoints(ctx, points); err != nil {
				s.log.Warn("series write-back failed", zap.Error(err))
			}
			return points, nil
		})
}

// storedMap reads today's reference table for a category from the durable
// tier. keyPrefix scopes region or sector variants sharing one category.
func (s *Service) storedMap(ctx context.Context, category model.Category, keyPrefix string) (model.CategoryMap, bool) {
	points, err := s.store.LatestAsOf(ctx, category, model.Today())
	if err != nil {
		s.log.Warn("store reference lookup failed",
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return nil, false
	}

	m := make(model.CategoryMap)
	for _, p := range points {
		if !p.ObservedDate.Equal(model.Today()) {
			continue
		}
		key := p.Key
		if keyPrefix != "" {
			if !strings.HasPrefix(key, keyPrefix) {
				continue
			}
			key = strings.TrimPrefix(key, keyPrefix)
		} else if strings.Contains(key, ":") {
			// Prefixed variants do not belong to the unscoped table.
			continue
		}
		m[key] = p.Value
	}
	if len(m) == 0 {
		return nil, false
	}
	return m, true
}

func prefixKeys(m model.CategoryMap, prefix string) model.CategoryMap {
	if prefix == "" {
		return m
	}
	out := make(model.CategoryMap, len(m))
	for k, v := range m {
		out[prefix+k] = v
	}
	return out
}

// resolveMap runs the tier chain for a keyed reference table.
func (s *Service) resolveMap(
	ctx context.Context,
	category model.Category,
	keyPrefix string,
	fetch func(ctx context.Context) (model.CategoryMap, error),
	fallbackFn func() model.CategoryMap,
) model.CategoryMap {
	if m, ok := s.storedMap(ctx, category, keyPrefix); ok {
		return m
	}

	m, err := fetch(ctx)
	if err == nil {
		s.writeBackMap(ctx, category, prefixKeys(m, keyPrefix), s.providerSource())
		return m
	}
	s.log.Warn("provider reference fetch failed, using fallback",
		zap.String("category", string(category)),
		zap.Error(err),
	)

	return fallbackFn()
}

// providerSource tags write-backs from resolveMap. The orchestrator does not
// report which provider answered, so the tier name is used.
func (s *Service) providerSource() string { return "PROVIDER" }

// CreditSpreads resolves the spread-by-rating table in basis points.
func (s *Service) CreditSpreads(ctx context.Context) (model.CategoryMap, error) {
	return cache.GetOrCompute(ctx, s.caches.Reference, "credit_spreads",
		func(ctx context.Context) (model.CategoryMap, error) {
			return s.resolveMap(ctx, model.CategoryCreditSpread, "",
				s.providers.FetchCreditSpreads,
				s.fallback.CreditSpreads,
			), nil
		})
}

// BenchmarkRates resolves the central bank rate table by region.
func (s *Service) BenchmarkRates(ctx context.Context) (model.CategoryMap, error) {
	return cache.GetOrCompute(ctx, s.caches.Reference, "benchmark_rates",
		func(ctx context.Context) (model.CategoryMap, error) {
			return s.resolveMap(ctx, model.CategoryBenchmarkRate, "",
				s.providers.FetchBenchmarkRates,
				s.fallback.BenchmarkRates,
			), nil
		})
}

// InflationExpectations resolves breakeven rates for a region. Unknown
// regions resolve through the fallback's EUR substitution rather than
// failing.
func (s *Service) InflationExpectations(ctx context.Context, region string) (model.CategoryMap, error) {
	region = strings.ToUpper(region)
	key := "inflation:" + region
	return cache.GetOrCompute(ctx, s.caches.Reference, key,
		func(ctx context.Context) (model.CategoryMap, error) {
			return s.resolveMap(ctx, model.CategoryInflationExpectation, region+":",
				func(ctx context.Context) (model.CategoryMap, error) {
					return s.providers.FetchInflationExpectations(ctx, region)
				},
				func() model.CategoryMap { return s.fallback.InflationExpectations(region) },
			), nil
		})
}

// SectorCreditData resolves sector-scaled credit spreads.
func (s *Service) SectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error) {
	sector = strings.ToUpper(sector)
	key := "sector:" + sector
	return cache.GetOrCompute(ctx, s.caches.Reference, key,
		func(ctx context.Context) (model.CategoryMap, error) {
			return s.resolveMap(ctx, model.CategoryCreditSpread, sector+":",
				func(ctx context.Context) (model.CategoryMap, error) {
					return s.providers.FetchSectorCreditData(ctx, sector)
				},
				func() model.CategoryMap { return s.fallback.SectorCreditData(sector) },
			), nil
		})
}

// LiquidityPremiums resolves the premium-by-instrument-type table.
func (s *Service) LiquidityPremiums(ctx context.Context) (model.CategoryMap, error) {
	return cache.GetOrCompute(ctx, s.caches.Reference, "liquidity_premiums",
		func(ctx context.Context) (model.CategoryMap, error) {
			return s.resolveMap(ctx, model.CategoryLiquidityPremium, "",
				s.providers.FetchLiquidityPremiums,
				s.fallback.LiquidityPremiums,
			), nil
		})
}

// YieldForTenor resolves a single yield, replaying the tier order at
// point granularity. It never fails; unknown tenors and regions go through
// the fallback defaulting chain.
func (s *Service) YieldForTenor(ctx context.Context, tenor, region string) decimal.Decimal {
	if model.ValidTenor(tenor) {
		if v, ok, err := s.store.PointLookup(ctx, model.CategoryYieldCurve, tenor, model.Today()); err == nil && ok {
			return v
		}
		if snap, err := s.LatestYieldCurve(ctx); err == nil {
			if v, ok := snap.Yields[tenor]; ok {
				return v
			}
		}
	}
	return s.fallback.YieldForTenor(tenor, region)
}

// CreditSpreadForRating resolves a single spread in basis points.
func (s *Service) CreditSpreadForRating(ctx context.Context, rating string) decimal.Decimal {
	rating = strings.ToUpper(rating)
	if model.ValidRating(rating) {
		if v, ok, err := s.store.PointLookup(ctx, model.CategoryCreditSpread, rating, model.Today()); err == nil && ok {
			return v
		}
		if m, err := s.CreditSpreads(ctx); err == nil {
			if v, ok := m[rating]; ok {
				return v
			}
		}
	}
	return s.fallback.CreditSpreadForRating(rating)
}

// BenchmarkRateForRegion resolves a single central bank rate.
func (s *Service) BenchmarkRateForRegion(ctx context.Context, region string) decimal.Decimal {
	region = strings.ToUpper(region)
	if model.ValidRegion(region) {
		if v, ok, err := s.store.PointLookup(ctx, model.CategoryBenchmarkRate, region, model.Today()); err == nil && ok {
			return v
		}
		if m, err := s.BenchmarkRates(ctx); err == nil {
			if v, ok := m[region]; ok {
				return v
			}
		}
	}
	return s.fallback.BenchmarkRateForRegion(region)
}

// IsAvailable reports whether at least one external provider is healthy.
// The pipeline still answers when false; results just come from lower tiers.
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.providers.AnyHealthy(ctx)
}

// ProviderHealthStatus reports each provider's probe result by name.
func (s *Service) ProviderHealthStatus(ctx context.Context) map[string]bool {
	return s.providers.HealthStatus(ctx)
}

// SupportedTenors returns the tenor vocabulary served by the primary provider.
func (s *Service) SupportedTenors() []string {
	return s.providers.SupportedTenors()
}

// CacheStats returns per-pool cache counters.
func (s *Service) CacheStats() []cache.Stats {
	return s.caches.Stats()
}

// ClearCaches empties every cache pool.
func (s *Service) ClearCaches() {
	s.caches.ClearAll()
	s.log.Info("caches cleared")
}

// ClearDatabaseData deletes every durable record. Operational hook.
func (s *Service) ClearDatabaseData(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("database cleared", zap.Int64("deleted", n))
	return n, nil
}

// CleanOldData deletes records observed more than daysToKeep days ago.
func (s *Service) CleanOldData(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		return 0, marketdata.InvalidInputf("days to keep must be positive, got %d", daysToKeep)
	}
	cutoff := model.Today().AddDate(0, 0, -daysToKeep)
	n, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("old data cleaned",
		zap.String("cutoff", cutoff.Format(model.DateFormat)),
		zap.Int64("deleted", n),
	)
	return n, nil
}
