package provider

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fixedincome/marketdata/internal/config"
	"github.com/fixedincome/marketdata/internal/httpclient"
	"github.com/fixedincome/marketdata/internal/marketdata"
	"github.com/fixedincome/marketdata/internal/model"
)

// SourceFRED tags data fetched from the FRED API.
const SourceFRED = "FRED"

// Euro area government bond yield series by tenor.
var fredSeries = map[string]string{
	"1M":  "IRLTLT01EZM156N",
	"3M":  "IRLTLT01EZQ156N",
	"6M":  "IR3TIB01EZM156N",
	"1Y":  "IRLTLT01EZA156N",
	"2Y":  "IRLTLT02EZA156N",
	"3Y":  "IRLTLT03EZA156N",
	"5Y":  "IRLTLT05EZA156N",
	"7Y":  "IRLTLT07EZA156N",
	"10Y": "IRLTLT10EZA156N",
	"20Y": "IRLTLT20EZA156N",
	"30Y": "IRLTLT30EZA156N",
}

// perTenorTimeout bounds each series sub-fetch so one slow series cannot
// hold the whole curve.
const perTenorTimeout = 10 * time.Second

// FRED is the primary provider, backed by the St. Louis Fed FRED API.
type FRED struct {
	base
	cfg    config.FREDConfig
	client *httpclient.Client
	log    *zap.Logger
}

// NewFRED creates the FRED client.
func NewFRED(cfg config.FREDConfig, client *httpclient.Client) *FRED {
	return &FRED{
		base:   base{name: SourceFRED, series: fredSeries},
		cfg:    cfg,
		client: client,
		log:    zap.L().With(zap.String("provider", SourceFRED)),
	}
}

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

func (f *FRED) checkConfigured() error {
	if f.cfg.APIKey == "" {
		return eris.Wrap(marketdata.ErrProviderUnavailable, "fred: api key not configured")
	}
	return nil
}

func (f *FRED) buildURL(seriesID string, start, end time.Time, limit int, sortOrder string) string {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", f.cfg.APIKey)
	q.Set("file_type", "json")
	if !start.IsZero() {
		q.Set("observation_start", start.Format(model.DateFormat))
	}
	if !end.IsZero() {
		q.Set("observation_end", end.Format(model.DateFormat))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if sortOrder != "" {
		q.Set("sort_order", sortOrder)
	}
	return f.cfg.BaseURL + "?" + q.Encode()
}

func (f *FRED) fetchObservations(ctx context.Context, seriesID string, start, end time.Time, limit int, sortOrder string) ([]fredObservation, error) {
	var resp fredResponse
	if err := f.client.GetJSON(ctx, f.buildURL(seriesID, start, end, limit, sortOrder), &resp); err != nil {
		return nil, eris.Wrapf(err, "fred: fetch series %s", seriesID)
	}
	return resp.Observations, nil
}

// fetchYieldForSeries returns the newest observation at or before date
// (zero date means latest available). ok is false when the series has no
// usable observation.
func (f *FRED) fetchYieldForSeries(ctx context.Context, seriesID string, date time.Time) (decimal.Decimal, bool, error) {
	obs, err := f.fetchObservations(ctx, seriesID, time.Time{}, date, 1, "desc")
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	if len(obs) == 0 {
		return decimal.Decimal{}, false, nil
	}
	v, ok := parseObservation(obs[0].Value)
	return v, ok, nil
}

// fetchCurve fans out one sub-fetch per tenor, each with its own timeout,
// and merges partial successes. Individual tenor failures are logged, not
// fatal; the fetch fails only when zero tenors succeed.
func (f *FRED) fetchCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	tenors := f.SupportedTenors()

	var mu sync.Mutex
	yields := make(map[string]decimal.Decimal, len(tenors))

	g, gctx := errgroup.WithContext(ctx)
	for _, tenor := range tenors {
		seriesID := f.series[tenor]
		g.Go(func() error {
			subCtx, cancel := context.WithTimeout(gctx, perTenorTimeout)
			defer cancel()

			v, ok, err := f.fetchYieldForSeries(subCtx, seriesID, date)
			if err != nil {
				f.log.Warn("tenor fetch failed",
					zap.String("tenor", tenor),
					zap.Error(err),
				)
				return nil // partial degradation is tolerated
			}
			if !ok {
				return nil
			}
			mu.Lock()
			yields[tenor] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.YieldCurveSnapshot{}, eris.Wrap(err, "fred: curve fan-out")
	}

	if len(yields) == 0 {
		return model.YieldCurveSnapshot{}, eris.Wrap(marketdata.ErrProviderUnavailable, "fred: no yield curve data fetched")
	}

	curveDate := model.Today()
	if !date.IsZero() {
		curveDate = model.Midnight(date)
	}
	f.log.Info("fetched yield curve",
		zap.String("date", curveDate.Format(model.DateFormat)),
		zap.Int("tenors", len(yields)),
	)
	return model.YieldCurveSnapshot{
		Date:        curveDate,
		Source:      SourceFRED,
		Yields:      yields,
		LastUpdated: model.Today(),
	}, nil
}

func (f *FRED) FetchLatestCurve(ctx context.Context) (model.YieldCurveSnapshot, error) {
	if err := f.checkConfigured(); err != nil {
		return model.YieldCurveSnapshot{}, err
	}
	return f.fetchCurve(ctx, time.Time{})
}

func (f *FRED) FetchHistoricalCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	if err := f.checkConfigured(); err != nil {
		return model.YieldCurveSnapshot{}, err
	}
	if err := model.ValidateDate(date); err != nil {
		return model.YieldCurveSnapshot{}, err
	}
	return f.fetchCurve(ctx, date)
}

func (f *FRED) FetchCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error) {
	if err := f.checkConfigured(); err != nil {
		return nil, err
	}
	if err := model.ValidateDates(dates); err != nil {
		return nil, err
	}

	results := make([]model.YieldCurveSnapshot, len(dates))
	ok := make([]bool, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, date := range dates {
		g.Go(func() error {
			snap, err := f.fetchCurve(gctx, date)
			if err != nil {
				f.log.Warn("curve fetch failed for date",
					zap.String("date", date.Format(model.DateFormat)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = snap
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "fred: batch fan-out")
	}

	out := make([]model.YieldCurveSnapshot, 0, len(dates))
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	f.log.Info("fetched yield curve batch",
		zap.Int("requested", len(dates)),
		zap.Int("resolved", len(out)),
	)
	return out, nil
}

func (f *FRED) FetchTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	if err := f.checkConfigured(); err != nil {
		return nil, err
	}
	if err := model.ValidateTenor(tenor); err != nil {
		return nil, err
	}
	if err := model.ValidateDateRange(start, end); err != nil {
		return nil, err
	}
	seriesID, err := f.seriesFor(tenor)
	if err != nil {
		return nil, err
	}

	obs, err := f.fetchObservations(ctx, seriesID, start, end, 0, "asc")
	if err != nil {
		return nil, err
	}

	points := make([]model.TimeSeriesPoint, 0, len(obs))
	for _, o := range obs {
		v, ok := parseObservation(o.Value)
		if !ok {
			continue
		}
		date, err := time.Parse(model.DateFormat, o.Date)
		if err != nil {
			f.log.Warn("skipping observation with bad date", zap.String("date", o.Date))
			continue
		}
		points = append(points, model.TimeSeriesPoint{
			Category:     model.CategoryYieldCurve,
			Key:          tenor,
			Value:        v,
			ObservedDate: date,
			Source:       SourceFRED,
			Currency:     "EUR",
			Tenor:        tenor,
		})
	}
	f.log.Info("fetched yield time series",
		zap.String("tenor", tenor),
		zap.Int("points", len(points)),
	)
	return points, nil
}

// FRED serves only curve and time-series data.

func (f *FRED) FetchCreditSpreads(ctx context.Context) (model.CategoryMap, error) {
	return nil, f.unsupported("credit spreads")
}

func (f *FRED) FetchBenchmarkRates(ctx context.Context) (model.CategoryMap, error) {
	return nil, f.unsupported("benchmark rates")
}

func (f *FRED) FetchInflationExpectations(ctx context.Context, region string) (model.CategoryMap, error) {
	return nil, f.unsupported("inflation expectations")
}

func (f *FRED) FetchSectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error) {
	return nil, f.unsupported("sector credit data")
}

func (f *FRED) FetchLiquidityPremiums(ctx context.Context) (model.CategoryMap, error) {
	return nil, f.unsupported("liquidity premiums")
}

// Healthy probes the 10Y series with a one-observation request.
func (f *FRED) Healthy(ctx context.Context) bool {
	if f.cfg.APIKey == "" {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	obs, err := f.fetchObservations(probeCtx, fredSeries["10Y"], time.Time{}, time.Time{}, 1, "desc")
	if err != nil {
		f.log.Warn("health check failed", zap.Error(err))
		return false
	}
	return len(obs) > 0
}
