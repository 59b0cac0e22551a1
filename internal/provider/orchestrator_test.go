package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixedincome/marketdata/internal/marketdata"
	"github.com/fixedincome/marketdata/internal/model"
)

// fakeProvider scripts one behavior for every operation and counts calls.
type fakeProvider struct {
	name    string
	healthy bool
	err     error
	curve   model.YieldCurveSnapshot
	series  []model.TimeSeriesPoint
	table   model.CategoryMap
	calls   int
}

func (f *fakeProvider) FetchLatestCurve(ctx context.Context) (model.YieldCurveSnapshot, error) {
	f.calls++
	return f.curve, f.err
}

func (f *fakeProvider) FetchHistoricalCurve(ctx context.Context, date time.Time) (model.YieldCurveSnapshot, error) {
	f.calls++
	return f.curve, f.err
}

func (f *fakeProvider) FetchCurvesForDates(ctx context.Context, dates []time.Time) ([]model.YieldCurveSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []model.YieldCurveSnapshot{f.curve}, nil
}

func (f *fakeProvider) FetchTimeSeries(ctx context.Context, tenor string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	f.calls++
	return f.series, f.err
}

func (f *fakeProvider) FetchCreditSpreads(ctx context.Context) (model.CategoryMap, error) {
	f.calls++
	return f.table, f.err
}

func (f *fakeProvider) FetchBenchmarkRates(ctx context.Context) (model.CategoryMap, error) {
	f.calls++
	return f.table, f.err
}

func (f *fakeProvider) FetchInflationExpectations(ctx context.Context, region string) (model.CategoryMap, error) {
	f.calls++
	return f.table, f.err
}

func (f *fakeProvider) FetchSectorCreditData(ctx context.Context, sector string) (model.CategoryMap, error) {
	f.calls++
	return f.table, f.err
}

func (f *fakeProvider) FetchLiquidityPremiums(ctx context.Context) (model.CategoryMap, error) {
	f.calls++
	return f.table, f.err
}

func (f *fakeProvider) Healthy(ctx context.Context) bool { return f.healthy }
func (f *fakeProvider) Name() string                     { return f.name }
func (f *fakeProvider) SupportedTenors() []string        { return model.Tenors }

func goodCurve() model.YieldCurveSnapshot {
	return model.YieldCurveSnapshot{
		Date:   model.Today(),
		Source: "fake",
		Yields: map[string]decimal.Decimal{"10Y": decimal.RequireFromString("3.05")},
	}
}

func TestOrchestrator_PrimaryWins(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, curve: goodCurve()}
	secondary := &fakeProvider{name: "secondary", healthy: true, curve: goodCurve()}
	o := NewOrchestrator(primary, secondary)

	snap, err := o.FetchLatestCurve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", snap.Source)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls, "secondary must not be tried when primary succeeds")
}

func TestOrchestrator_FailoverToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, err: eris.New("down")}
	secondary := &fakeProvider{name: "secondary", healthy: true, curve: goodCurve()}
	o := NewOrchestrator(primary, secondary)

	snap, err := o.FetchLatestCurve(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Yields)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestOrchestrator_UnhealthySkippedWithoutCall(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: false, curve: goodCurve()}
	secondary := &fakeProvider{name: "secondary", healthy: true, curve: goodCurve()}
	o := NewOrchestrator(primary, secondary)

	_, err := o.FetchLatestCurve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestOrchestrator_AllExhausted(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, err: eris.New("down")}
	secondary := &fakeProvider{name: "secondary", healthy: true, err: eris.New("also down")}
	o := NewOrchestrator(primary, secondary)

	_, err := o.FetchLatestCurve(context.Background())
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestOrchestrator_EmptyResultFallsThrough(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true} // empty curve, no error
	secondary := &fakeProvider{name: "secondary", healthy: true, curve: goodCurve()}
	o := NewOrchestrator(primary, secondary)

	snap, err := o.FetchLatestCurve(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Yields)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestOrchestrator_NilSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, err: eris.New("down")}
	o := NewOrchestrator(primary, nil)

	_, err := o.FetchLatestCurve(context.Background())
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestOrchestrator_InvalidInputPropagates(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, err: marketdata.InvalidInputf("bad tenor")}
	secondary := &fakeProvider{name: "secondary", healthy: true, curve: goodCurve()}
	o := NewOrchestrator(primary, secondary)

	_, err := o.FetchHistoricalCurve(context.Background(), model.Today())
	assert.True(t, marketdata.IsInvalidInput(err))
	assert.Equal(t, 0, secondary.calls, "input errors are final, no failover")
}

func TestOrchestrator_UnsupportedSkipsWithoutBreakerPenalty(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, err: eris.Wrap(marketdata.ErrUnsupported, "no spreads here")}
	secondary := &fakeProvider{name: "secondary", healthy: true, table: model.CategoryMap{"BBB": decimal.RequireFromString("150")}}
	o := NewOrchestrator(primary, secondary)

	for i := 0; i < 10; i++ {
		m, err := o.FetchCreditSpreads(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, m)
	}
	assert.Equal(t, "closed", o.BreakerStates()["primary"])
}

func TestOrchestrator_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: true, err: eris.New("down")}
	secondary := &fakeProvider{name: "secondary", healthy: true, curve: goodCurve()}
	o := NewOrchestrator(primary, secondary)

	for i := 0; i < 6; i++ {
		_, err := o.FetchLatestCurve(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, "open", o.BreakerStates()["primary"])
	callsBefore := primary.calls
	_, err := o.FetchLatestCurve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, callsBefore, primary.calls, "open circuit must short-circuit the call")
}

func TestOrchestrator_Health(t *testing.T) {
	primary := &fakeProvider{name: "primary", healthy: false}
	secondary := &fakeProvider{name: "secondary", healthy: true}
	o := NewOrchestrator(primary, secondary)

	assert.True(t, o.AnyHealthy(context.Background()))
	status := o.HealthStatus(context.Background())
	assert.False(t, status["primary"])
	assert.True(t, status["secondary"])

	down := NewOrchestrator(&fakeProvider{name: "only", healthy: false}, nil)
	assert.False(t, down.AnyHealthy(context.Background()))
}
