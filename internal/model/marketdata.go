// Package model holds the market data value objects passed between
// resolution tiers. Snapshots and category maps are immutable once built.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the kind of reference data a record belongs to.
type Category string

const (
	CategoryYieldCurve           Category = "yield_curve"
	CategoryCreditSpread         Category = "credit_spread"
	CategoryBenchmarkRate        Category = "benchmark_rate"
	CategoryInflationExpectation Category = "inflation_expectation"
	CategoryLiquidityPremium     Category = "liquidity_premium"
	CategorySwapRate             Category = "swap_rate"
	CategoryFXRate               Category = "fx_rate"
)

// DateFormat is the wire and storage format for civil dates.
const DateFormat = "2006-01-02"

// SourceFallback tags data produced by the static fallback tier.
const SourceFallback = "FALLBACK"

// YieldCurveSnapshot is a point-in-time term structure. Yields maps tenor
// label to yield percentage and is never empty when returned to a caller.
type YieldCurveSnapshot struct {
	Date        time.Time                  `json:"date"`
	Source      string                     `json:"source"`
	Yields      map[string]decimal.Decimal `json:"yields"`
	LastUpdated time.Time                  `json:"last_updated"`
}

// TimeSeriesPoint is a single observation for one (category, key) pair.
// (Category, Key, ObservedDate, Source) is the natural key in the durable tier.
type TimeSeriesPoint struct {
	Category     Category        `json:"category"`
	Key          string          `json:"key"`
	Value        decimal.Decimal `json:"value"`
	ObservedDate time.Time       `json:"observed_date"`
	Source       string          `json:"source"`
	Currency     string          `json:"currency,omitempty"`
	Tenor        string          `json:"tenor,omitempty"`
}

// CategoryMap maps a string key (rating, region, instrument type) to a value.
type CategoryMap map[string]decimal.Decimal

// Clone returns an independent copy so no tier holds a reference into
// another tier's state.
func (m CategoryMap) Clone() CategoryMap {
	out := make(CategoryMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Today returns the current civil date at UTC midnight.
func Today() time.Time {
	return Midnight(time.Now().UTC())
}

// Midnight truncates t to a civil date at UTC midnight.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DecomposeSnapshot flattens a snapshot into time-series points for storage.
func DecomposeSnapshot(s YieldCurveSnapshot) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(s.Yields))
	for tenor, y := range s.Yields {
		points = append(points, TimeSeriesPoint{
			Category:     CategoryYieldCurve,
			Key:          tenor,
			Value:        y,
			ObservedDate: s.Date,
			Source:       s.Source,
			Tenor:        tenor,
		})
	}
	return points
}

// BuildSnapshot reconstructs a snapshot from stored points. The date and
// source are taken from the first point; returns ok=false for empty input.
func BuildSnapshot(points []TimeSeriesPoint) (YieldCurveSnapshot, bool) {
	if len(points) == 0 {
		return YieldCurveSnapshot{}, false
	}
	yields := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		yields[p.Key] = p.Value
	}
	return YieldCurveSnapshot{
		Date:        points[0].ObservedDate,
		Source:      points[0].Source,
		Yields:      yields,
		LastUpdated: Today(),
	}, true
}
