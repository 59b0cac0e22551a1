package model

import (
	"strings"
	"time"

	"github.com/fixedincome/marketdata/internal/marketdata"
)

// Tenors is the fixed tenor vocabulary, short to long.
var Tenors = []string{"1M", "3M", "6M", "1Y", "2Y", "3Y", "5Y", "7Y", "10Y", "20Y", "30Y"}

// Regions is the fixed region vocabulary.
var Regions = []string{"US", "EUR", "UK", "JP", "CA", "AU"}

// Ratings is the standard agency rating scale.
var Ratings = []string{"AAA", "AA", "A", "BBB", "BB", "B", "CCC", "CC", "C", "D"}

// InstrumentTypes keys the liquidity premium table.
var InstrumentTypes = []string{"GOVERNMENT", "CORPORATE", "MUNICIPAL", "HIGH_YIELD", "EMERGING_MARKET"}

// MaxBatchDates caps a single batched historical-curve request.
const MaxBatchDates = 50

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ValidTenor reports whether t is in the tenor vocabulary.
func ValidTenor(t string) bool { return contains(Tenors, t) }

// ValidRegion reports whether r is in the region vocabulary.
func ValidRegion(r string) bool { return contains(Regions, strings.ToUpper(r)) }

// ValidRating reports whether r is in the agency rating scale.
func ValidRating(r string) bool { return contains(Ratings, strings.ToUpper(r)) }

// ValidateTenor returns ErrInvalidInput for tenors outside the vocabulary.
func ValidateTenor(tenor string) error {
	if tenor == "" {
		return marketdata.InvalidInputf("tenor is empty")
	}
	if !ValidTenor(tenor) {
		return marketdata.InvalidInputf("unknown tenor %q, supported: %s", tenor, strings.Join(Tenors, ","))
	}
	return nil
}

// ValidateDate returns ErrInvalidInput for zero or future dates.
func ValidateDate(date time.Time) error {
	if date.IsZero() {
		return marketdata.InvalidInputf("date is zero")
	}
	if Midnight(date).After(Today()) {
		return marketdata.InvalidInputf("date %s is in the future", date.Format(DateFormat))
	}
	return nil
}

// ValidateDateRange returns ErrInvalidInput for inverted or future-starting ranges.
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return marketdata.InvalidInputf("start and end dates are required")
	}
	if start.After(end) {
		return marketdata.InvalidInputf("start %s is after end %s",
			start.Format(DateFormat), end.Format(DateFormat))
	}
	if Midnight(start).After(Today()) {
		return marketdata.InvalidInputf("start %s is in the future", start.Format(DateFormat))
	}
	return nil
}

// ValidateDates returns ErrInvalidInput for an empty or oversized batch, or
// if any date is invalid.
func ValidateDates(dates []time.Time) error {
	if len(dates) == 0 {
		return marketdata.InvalidInputf("dates list is empty")
	}
	if len(dates) > MaxBatchDates {
		return marketdata.InvalidInputf("batch of %d dates exceeds limit of %d", len(dates), MaxBatchDates)
	}
	for _, d := range dates {
		if err := ValidateDate(d); err != nil {
			return err
		}
	}
	return nil
}
