package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fixedincome/marketdata/internal/marketdata"
	"github.com/fixedincome/marketdata/internal/model"
	"github.com/fixedincome/marketdata/internal/resilience"
)

// Orchestrator walks a fixed-priority provider chain. A provider is tried
// when its circuit breaker allows and its health probe passes; any error,
// unsupported category, or empty result moves on to the next provider.
// Failures here never surface as failures to callers: when the chain is
// exhausted the orchestrator reports ErrNoData and the pipeline falls
// through to its next tier.
type Orchestrator struct {
	providers []Provider
	breakers  map[string]*resilience.Breaker
	log       *zap.Logger
}

// NewOrchestrator builds the chain in priority order. secondary may be nil.
func NewOrchestrator(primary Provider, secondary Provider) *Orchestrator {
	providers := []Provider{primary}
	if secondary != nil {
		providers = append(providers, secondary)
	}

	breakers := make(map[string]*resilience.Breaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.NewBreaker(resilience.BreakerConfig{})
	}
	return &Orchestrator{
		providers: providers,
		breakers:  breakers,
		log:       zap.L().With(zap.String("component", "orchestrator")),
	}
}

// tryEach runs op against each eligible provider in priority order and
// returns the first usable result. empty reports whether a provider result
// should count as "nothing there, keep going".
func tryEach[T any](ctx context.Context, o *Orchestrator, operation string, empty func(T) bool, op func(Provider) (T, error)) (T, error) {
	var zero T
	for _, p := range o.providers {
		br := o.breakers[p.Name()]
		if !br.Allow() {
			o.log.Debug("circuit open, skipping provider",
				zap.String("provider", p.Name()),
				zap.String("operation", operation),
			)
			continue
		}
		if !p.Healthy(ctx) {
			o.log.Warn("provider unhealthy, skipping",
				zap.String("provider", p.Name()),
				zap.String("operation", operation),
			)
			continue
		}

		result, err := op(p)
		if err != nil {
			if marketdata.IsInvalidInput(err) {
				return zero, err
			}
			if marketdata.IsUnsupported(err) {
				// Not a failure; the provider just does not carry
				// this category.
				continue
			}
			br.Record(err)
			o.log.Warn("provider call failed",
				zap.String("provider", p.Name()),
				zap.String("operation", operation),
				zap.Error(err),
			)
			continue
		}
		br.Record(nil)

		if empty(result) {
			o.log.Debug("provider returned no data",
				zap.String("provider", p.Name()),
				zap.String("operation", operation),
			)
			continue
		}
		return result, nil
	}
	return zero, eris.Wrapf(marketdata.ErrNoData, "orchestrator: all providers exhausted for %s", operation)
}

func emptySnapshot(s model.YieldCurveSnapshot) bool { return len(s.Yields) == 0 }

func emptySnapshots(s []model.YieldCurveSnapshot) bool { return len(s) == 0 }

func emptyPoints(p []model.TimeSeriesPoint) bool { return len(p) == 0 }

func emptyMap(m model.CategoryMap) bool { return len(m) == 0 }

func (o *Orchestrator) FetchLatestCurve(ctx context.Context) (model.YieldCurveSnapshot, error) {
	return tryEach(ctx, o, "latest curve", emptySnapshot, func(p Provider) (model.YieldCurveSnapshot, error) {
		return p.FetchLatestCurve(ctx)
	})
}

func (o *Orchestrator) FetchHistoricalCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	return tryEach(ctx, o, "historical curve", emptySnapshot, func(p Provider) (model.YieldCurveSnapshot, error) {
		return p.FetchHistoricalCurve(ctx, date)
	})
}

func (o *Orchestrator) FetchCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error) {
	return tryEach(ctx, o, "curve batch", emptySnapshots, func(p Provider) ([]model.YieldCurveSnapshot, error) {
		return p.FetchCurvesForDates(ctx, dates)
	})
}

func (o *Orchestrator) FetchTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	return tryEach(ctx, o, "time series", emptyPoints, func(p Provider) ([]model.TimeSeriesPoint, error) {
		return p.FetchTimeSeries(ctx, tenor, start, end)
	})
}

func (o *Orchestrator) FetchCreditSpreads(ctx context.Context) (model.CategoryMap, error) {
	return tryEach(ctx, o, "credit spreads", emptyMap, func(p Provider) (model.CategoryMap, error) {
		return p.FetchCreditSpreads(ctx)
	})
}

func (o *Orchestrator) FetchBenchmarkRates(ctx context.Context) (model.CategoryMap, error) {
	return tryEach(ctx, o, "benchmark rates", emptyMap, func(p Provider) (model.CategoryMap, error) {
		return p.FetchBenchmarkRates(ctx)
	})
}

func (o *Orchestrator) FetchInflationExpectations(ctx context.Context, region string) (model.CategoryMap, error) {
	return tryEach(ctx, o, "inflation expectations", emptyMap, func(p Provider) (model.CategoryMap, error) {
		return p.FetchInflationExpectations(ctx, region)
	})
}

func (o *Orchestrator) FetchSectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error) {
	return tryEach(ctx, o, "sector credit data", emptyMap, func(p Provider) (model.CategoryMap, error) {
		return p.FetchSectorCreditData(ctx, sector)
	})
}

func (o *Orchestrator) FetchLiquidityPremiums(ctx context.Context) (model.CategoryMap, error) {
	return tryEach(ctx, o, "liquidity premiums", emptyMap, func(p Provider) (model.CategoryMap, error) {
		return p.FetchLiquidityPremiums(ctx)
	})
}

// AnyHealthy reports whether at least one provider passes its probe.
func (o *Orchestrator) AnyHealthy(ctx context.Context) bool {
	for _, p := range o.providers {
		if p.Healthy(ctx) {
			return true
		}
	}
	return false
}

// HealthStatus reports each provider's probe result by name.
func (o *Orchestrator) HealthStatus(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(o.providers))
	for _, p := range o.providers {
		out[p.Name()] = p.Healthy(ctx)
	}
	return out
}

// BreakerStates reports each provider's circuit state by name.
func (o *Orchestrator) BreakerStates() map[string]string {
	out := make(map[string]string, len(o.breakers))
	for name, br := range o.breakers {
		out[name] = br.State().String()
	}
	return out
}

// SupportedTenors returns the primary provider's tenor set.
func (o *Orchestrator) SupportedTenors() []string {
	return o.providers[0].SupportedTenors()
}
