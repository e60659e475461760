package query

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/godilite/customer-intel/internal/repository/models"
)

// All is the sentinel meaning "no filter" for country and segment.
const All = "All"

var ErrInvalidFilter = errors.New("invalid filter")

// FallbackStartDate is used when the data store has no orders to derive a range from.
var FallbackStartDate = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// FilterSelection is the set of user-selected filters for one dashboard request.
type FilterSelection struct {
	StartDate time.Time
	EndDate   time.Time
	Country   string
	Segment   string
	ChurnMin  float64
	CLVMin    float64
}

// FilterDomain holds the values a country or segment filter may take.
type FilterDomain struct {
	Countries []string
	Segments  []string
}

// DefaultSelection builds the initial selection from the observed order date range,
// falling back to FallbackStartDate and today when the store is empty.
func DefaultSelection(bounds models.DateBounds, today time.Time) FilterSelection {
	start := bounds.Min.Time
	if start.IsZero() {
		start = FallbackStartDate
	}
	end := bounds.Max.Time
	if end.IsZero() {
		end = truncateDay(today)
	}
	return FilterSelection{
		StartDate: start,
		EndDate:   end,
		Country:   All,
		Segment:   All,
	}
}

// Normalize maps empty country/segment to the All sentinel and drops time of day.
func (f FilterSelection) Normalize() FilterSelection {
	if f.Country == "" {
		f.Country = All
	}
	if f.Segment == "" {
		f.Segment = All
	}
	f.StartDate = truncateDay(f.StartDate)
	f.EndDate = truncateDay(f.EndDate)
	return f
}

// CheckRanges validates everything that does not need the data store.
func (f FilterSelection) CheckRanges() error {
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidFilter)
	}
	if truncateDay(f.StartDate).After(truncateDay(f.EndDate)) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidFilter,
			f.StartDate.Format(models.DateLayout), f.EndDate.Format(models.DateLayout))
	}
	if math.IsNaN(f.ChurnMin) || f.ChurnMin < 0 || f.ChurnMin > 1 {
		return fmt.Errorf("%w: churn_min %v outside [0, 1]", ErrInvalidFilter, f.ChurnMin)
	}
	if math.IsNaN(f.CLVMin) || math.IsInf(f.CLVMin, 0) || f.CLVMin < 0 {
		return fmt.Errorf("%w: clv_min %v must be a non-negative number", ErrInvalidFilter, f.CLVMin)
	}
	return nil
}

// Validate checks ranges and that country/segment are either All or a known value.
func (f FilterSelection) Validate(domain FilterDomain) error {
	if err := f.CheckRanges(); err != nil {
		return err
	}
	if f.Country != All && !slices.Contains(domain.Countries, f.Country) {
		return fmt.Errorf("%w: unknown country %q", ErrInvalidFilter, f.Country)
	}
	if f.Segment != All && !slices.Contains(domain.Segments, f.Segment) {
		return fmt.Errorf("%w: unknown segment %q", ErrInvalidFilter, f.Segment)
	}
	return nil
}

func (f FilterSelection) countryValue() any {
	if f.Country == All || f.Country == "" {
		return nil
	}
	return f.Country
}

func (f FilterSelection) segmentValue() any {
	if f.Segment == All || f.Segment == "" {
		return nil
	}
	return f.Segment
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
