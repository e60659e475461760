package httpapi

import (
	"fmt"
	"time"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
)

// FilterRequest is the query string accepted by every filtered endpoint.
type FilterRequest struct {
	StartDate string  `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string  `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Country   string  `form:"country"`
	Segment   string  `form:"segment"`
	ChurnMin  float64 `form:"churn_min" binding:"gte=0,lte=1"`
	CLVMin    float64 `form:"clv_min" binding:"gte=0"`
}

// Selection converts the request into a filter selection. Missing dates stay zero
// and are filled in by the dashboard service.
func (r FilterRequest) Selection() (query.FilterSelection, error) {
	f := query.FilterSelection{
		Country:  r.Country,
		Segment:  r.Segment,
		ChurnMin: r.ChurnMin,
		CLVMin:   r.CLVMin,
	}
	var err error
	if f.StartDate, err = parseDate("start_date", r.StartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate("end_date", r.EndDate); err != nil {
		return f, err
	}
	return f, nil
}

func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
