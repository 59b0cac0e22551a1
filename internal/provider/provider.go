// Package provider implements the external market data source tier: a
// uniform capability interface, concrete upstream clients, and the
// fixed-priority orchestrator that hides their failures from the pipeline.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/fixedincome/marketdata/internal/marketdata"
	"github.com/fixedincome/marketdata/internal/model"
)

// Provider is the uniform capability contract every external data source
// implements. Any category subset may be unsupported; those operations
// return marketdata.ErrUnsupported so the orchestrator can skip the
// provider for that category without affecting its standing elsewhere.
type Provider interface {
	FetchLatestCurve(ctx context.Context) (model.YieldCurveSnapshot, error)
	FetchHistoricalCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error)
	FetchCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error)
	FetchTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error)

	FetchCreditSpreads(ctx context.Context) (model.CategoryMap, error)
	FetchBenchmarkRates(ctx context.Context) (model.CategoryMap, error)
	FetchInflationExpectations(ctx context.Context, region string) (model.CategoryMap, error)
	FetchSectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error)
	FetchLiquidityPremiums(ctx context.Context) (model.CategoryMap, error)

	// Healthy is a cheap liveness probe. It must not panic; any internal
	// failure reports as unhealthy.
	Healthy(ctx context.Context) bool

	Name() string
	SupportedTenors() []string
}

// base carries the tenor-to-series mapping and shared parsing/validation
// used by the concrete clients.
type base struct {
	name   string
	series map[string]string
}

func (b *base) Name() string { return b.name }

func (b *base) SupportedTenors() []string {
	tenors := make([]string, 0, len(b.series))
	for _, t := range model.Tenors {
		if _, ok := b.series[t]; ok {
			tenors = append(tenors, t)
		}
	}
	return tenors
}

func (b *base) seriesFor(tenor string) (string, error) {
	id, ok := b.series[tenor]
	if !ok {
		return "", marketdata.InvalidInputf("%s: unsupported tenor %q", b.name, tenor)
	}
	return id, nil
}

// unsupported tags a category the provider does not offer.
func (b *base) unsupported(category string) error {
	return eris.Wrapf(marketdata.ErrUnsupported, "%s does not provide %s", b.name, category)
}

// parseObservation converts an upstream value string to a decimal. Missing
// sentinels (a single dot) and malformed values are reported as absent,
// not as errors.
func parseObservation(value string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "." {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
