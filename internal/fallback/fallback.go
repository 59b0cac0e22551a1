// Package fallback holds the static reference tables used when every other
// resolution tier has failed. The tables are fixed at process start and are
// only reachable through the Resolver, which never fails.
package fallback

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fixedincome/marketdata/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Credit spreads by rating, in basis points.
var creditSpreads = model.CategoryMap{
	"AAA": d("25"),
	"AA":  d("40"),
	"A":   d("75"),
	"BBB": d("150"),
	"BB":  d("300"),
	"B":   d("500"),
	"CCC": d("800"),
	"CC":  d("1200"),
	"C":   d("2000"),
}

// Yield curves by region, in yield percentage.
var yieldCurves = map[string]model.CategoryMap{
	"US": {
		"1M": d("5.31"), "3M": d("5.28"), "6M": d("5.12"), "1Y": d("4.80"),
		"2Y": d("4.49"), "3Y": d("4.25"), "5Y": d("4.18"), "7Y": d("4.20"),
		"10Y": d("4.23"), "20Y": d("4.47"), "30Y": d("4.39"),
	},
	"EUR": {
		"1M": d("3.75"), "3M": d("3.72"), "6M": d("3.51"), "1Y": d("3.40"),
		"2Y": d("3.15"), "3Y": d("3.10"), "5Y": d("2.92"), "7Y": d("2.89"),
		"10Y": d("3.05"), "20Y": d("3.31"), "30Y": d("3.45"),
	},
	"UK": {
		"1M": d("5.15"), "3M": d("5.05"), "6M": d("4.95"), "1Y": d("4.65"),
		"2Y": d("4.35"), "3Y": d("4.20"), "5Y": d("4.10"), "7Y": d("4.12"),
		"10Y": d("4.15"), "20Y": d("4.40"), "30Y": d("4.35"),
	},
	"JP": {
		"1M": d("0.08"), "3M": d("0.12"), "6M": d("0.15"), "1Y": d("0.20"),
		"2Y": d("0.28"), "3Y": d("0.35"), "5Y": d("0.59"), "7Y": d("0.75"),
		"10Y": d("0.95"), "20Y": d("1.70"), "30Y": d("1.90"),
	},
}

// Central bank benchmark rates by region.
var benchmarkRates = model.CategoryMap{
	"US":  d("5.25"), // Fed Funds
	"EUR": d("3.75"), // ECB Deposit Rate
	"UK":  d("5.00"), // Bank of England
	"JP":  d("0.10"), // Bank of Japan
	"CA":  d("4.50"), // Bank of Canada
	"AU":  d("4.10"), // Reserve Bank of Australia
}

// Inflation breakeven rates by region and horizon.
var inflationExpectations = map[string]model.CategoryMap{
	"US":  {"2Y": d("2.5"), "5Y": d("2.3"), "10Y": d("2.2"), "30Y": d("2.1")},
	"EUR": {"2Y": d("2.1"), "5Y": d("2.0"), "10Y": d("1.9"), "30Y": d("1.8")},
	"UK":  {"2Y": d("3.2"), "5Y": d("3.0"), "10Y": d("2.8"), "30Y": d("2.7")},
}

// Liquidity premiums by instrument type, in basis points.
var liquidityPremiums = model.CategoryMap{
	"GOVERNMENT":      d("0"),
	"CORPORATE":       d("15"),
	"MUNICIPAL":       d("25"),
	"HIGH_YIELD":      d("50"),
	"EMERGING_MARKET": d("75"),
}

// Per-sector spread multipliers. Spreads are scaled and rounded to the
// nearest whole basis point, half up.
var sectorMultipliers = map[string]decimal.Decimal{
	"TECH":       d("0.85"),
	"ENERGY":     d("1.20"),
	"UTILITIES":  d("0.90"),
	"FINANCIALS": d("1.10"),
	"HEALTHCARE": d("0.95"),
}

const (
	defaultRegion = "EUR"
	defaultRating = "BBB"
	defaultTenor  = "30Y"
)

// Last-resort scalar constants when even the default key is missing a value.
var (
	lastResortYield  = d("4.00")
	lastResortSpread = d("150")
	lastResortRate   = d("3.75")
)

// Resolver is the guaranteed terminal tier for non-time-series queries.
type Resolver struct {
	log *zap.Logger
}

// NewResolver returns the static fallback resolver.
func NewResolver() *Resolver {
	return &Resolver{log: zap.L().With(zap.String("component", "fallback"))}
}

// YieldCurve returns the fallback term structure for a region and date.
// Unknown or empty regions substitute EUR.
func (r *Resolver) YieldCurve(region string, date time.Time) model.YieldCurveSnapshot {
	safe := strings.ToUpper(region)
	yields, ok := yieldCurves[safe]
	if !ok {
		safe = defaultRegion
		yields = yieldCurves[defaultRegion]
	}
	r.log.Info("serving fallback yield curve",
		zap.String("region", safe),
		zap.String("date", date.Format(model.DateFormat)),
	)
	return model.YieldCurveSnapshot{
		Date:        model.Midnight(date),
		Source:      model.SourceFallback,
		Yields:      yields.Clone(),
		LastUpdated: model.Today(),
	}
}

// YieldCurves returns one fallback curve per date.
func (r *Resolver) YieldCurves(region string, dates []time.Time) []model.YieldCurveSnapshot {
	out := make([]model.YieldCurveSnapshot, 0, len(dates))
	for _, date := range dates {
		out = append(out, r.YieldCurve(region, date))
	}
	return out
}

// CreditSpreads returns the static spread table.
func (r *Resolver) CreditSpreads() model.CategoryMap {
	return creditSpreads.Clone()
}

// BenchmarkRates returns the static central bank rate table.
func (r *Resolver) BenchmarkRates() model.CategoryMap {
	return benchmarkRates.Clone()
}

// InflationExpectations returns the breakeven table for a region,
// substituting EUR for unknown regions.
func (r *Resolver) InflationExpectations(region string) model.CategoryMap {
	safe := strings.ToUpper(region)
	m, ok := inflationExpectations[safe]
	if !ok {
		m = inflationExpectations[defaultRegion]
	}
	return m.Clone()
}

// LiquidityPremiums returns the static premium table.
func (r *Resolver) LiquidityPremiums() model.CategoryMap {
	return liquidityPremiums.Clone()
}

// SectorCreditData returns credit spreads scaled by the sector multiplier.
// Unknown sectors get the base table unchanged.
func (r *Resolver) SectorCreditData(sector string) model.CategoryMap {
	mult, ok := sectorMultipliers[strings.ToUpper(sector)]
	if !ok {
		return creditSpreads.Clone()
	}
	out := make(model.CategoryMap, len(creditSpreads))
	for rating, spread := range creditSpreads {
		out[rating] = spread.Mul(mult).Round(0)
	}
	return out
}

// YieldForTenor resolves a single yield with the defaulting chain:
// unknown region -> EUR, unknown tenor -> 30Y, missing -> 4.00.
func (r *Resolver) YieldForTenor(tenor, region string) decimal.Decimal {
	curve, ok := yieldCurves[strings.ToUpper(region)]
	if !ok {
		curve = yieldCurves[defaultRegion]
	}
	if y, ok := curve[tenor]; ok {
		return y
	}
	if y, ok := curve[defaultTenor]; ok {
		return y
	}
	return lastResortYield
}

// CreditSpreadForRating resolves a single spread, defaulting unknown
// ratings to BBB.
func (r *Resolver) CreditSpreadForRating(rating string) decimal.Decimal {
	if s, ok := creditSpreads[strings.ToUpper(rating)]; ok {
		return s
	}
	if s, ok := creditSpreads[defaultRating]; ok {
		return s
	}
	return lastResortSpread
}

// BenchmarkRateForRegion resolves a single rate, defaulting unknown
// regions to EUR.
func (r *Resolver) BenchmarkRateForRegion(region string) decimal.Decimal {
	if v, ok := benchmarkRates[strings.ToUpper(region)]; ok {
		return v
	}
	if v, ok := benchmarkRates[defaultRegion]; ok {
		return v
	}
	return lastResortRate
}
