package models

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar date scanned from either a DATE column (postgres) or an
// ISO-8601 text column (sqlite views).
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date source %T", src)
	}
}

func (d *Date) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) >= len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// CustomerAggregate is one RFM row read from vw_customer_master.
type CustomerAggregate struct {
	CustomerID      string
	RecencyDays     sql.NullFloat64
	FrequencyOrders sql.NullFloat64
	MonetaryRevenue sql.NullFloat64
}

// CustomerPrediction is one row of customer_predictions.
type CustomerPrediction struct {
	CustomerID string
	ChurnProb  float64
	CLV        float64
}

type MonthlyMetric struct {
	Month           Date
	ActiveCustomers int64
	Orders          int64
	Revenue         float64
	RepeatRate      float64
}

type SegmentKPI struct {
	Segment   string
	Revenue   float64
	Customers int64
}

// CustomerRow is the full customer master projection. ChurnProb and CLV are null
// until a scoring run has written predictions.
type CustomerRow struct {
	CustomerID      string
	Country         sql.NullString
	Segment         sql.NullString
	RecencyDays     sql.NullFloat64
	FrequencyOrders sql.NullFloat64
	MonetaryRevenue sql.NullFloat64
	AvgOrderValue   sql.NullFloat64
	FirstOrderDate  Date
	LastOrderDate   Date
	ChurnProb       sql.NullFloat64
	CLV             sql.NullFloat64
}

type RiskRow struct {
	CustomerID      string
	Country         sql.NullString
	Segment         sql.NullString
	MonetaryRevenue float64
	ChurnProb       float64
	CLV             float64
	PriorityScore   float64
}

type DateBounds struct {
	Min Date
	Max Date
}

type OrderLine struct {
	InvoiceNo   string
	InvoiceDate time.Time
	CustomerID  string
	Country     string
	StockCode   string
	Description string
	Quantity    int
	UnitPrice   float64
}
