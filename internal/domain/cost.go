package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on every external surface.
const DateLayout = "2006-01-02"

// DefaultCurrency is reported when a provider returns no currency information.
const DefaultCurrency = "USD"

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate returns an InvalidRangeError when End precedes Start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return ErrInvalidRange("end date %s must not be before start date %s",
			r.End.Format(DateLayout), r.Start.Format(DateLayout))
	}
	return nil
}

// ParseDateRange parses two YYYY-MM-DD strings and validates the result.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate("start_date", start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate("end_date", end)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: s, End: e}
	return r, r.Validate()
}

// ParseDate parses a YYYY-MM-DD value, naming field in the error.
func ParseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrInvalidParameter("%s is required", field)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidParameter("%s must be a date in YYYY-MM-DD format, got %q", field, value)
	}
	return t, nil
}

// LastDays returns the range [now-days, now] truncated to calendar days in UTC.
func LastDays(now time.Time, days int) DateRange {
	end := now.UTC().Truncate(24 * time.Hour)
	return DateRange{Start: end.AddDate(0, 0, -days), End: end}
}

// CostRecord is one line of a normalized cost breakdown.
type CostRecord struct {
	Label    string
	Amount   decimal.Decimal
	Currency string
}

// CostReport is the normalized output of every cost aggregation.
type CostReport struct {
	StartDate   time.Time
	EndDate     time.Time
	TotalCost   decimal.Decimal
	Currency    string
	Breakdown   []CostRecord
	PeriodStart string
	PeriodEnd   string
}
