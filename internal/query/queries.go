package query

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/godilite/customer-intel/internal/repository/models"
)

const (
	ViewCustomerMaster = "vw_customer_master"
	ViewMonthlyMetrics = "vw_monthly_metrics"
	ViewSegmentKPIs    = "vw_segment_kpis"
	ViewTopAtRisk      = "vw_top_at_risk"

	// CustomerListLimit caps the drilldown list.
	CustomerListLimit = 1000
)

// Query is a composed statement and its bound parameters.
type Query struct {
	SQL  string
	Args []any
}

// CacheKey derives a stable key from the statement text and bound parameters.
func (q Query) CacheKey(prefix string) string {
	h := xxhash.New()
	_, _ = h.WriteString(q.SQL)
	for _, a := range q.Args {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(fmt.Sprintf("%T:%v", a, a))
	}
	return prefix + ":" + strconv.FormatUint(h.Sum64(), 16)
}

func customerProjection() *ProjectionMap {
	return NewProjectionMap(ViewCustomerMaster, "c").
		Project("customer_id").
		Project("country").
		Project("segment").
		Project("recency_days").
		Project("frequency_orders").
		Project("monetary_revenue").
		Project("avg_order_value").
		Project("first_order_date").
		Project("last_order_date").
		Project("churn_prob").
		Project("clv")
}

func riskProjection() *ProjectionMap {
	return NewProjectionMap(ViewCustomerMaster, "c").
		Project("customer_id").
		Project("country").
		Project("segment").
		Project("monetary_revenue").
		Project("churn_prob").
		Project("clv").
		ProjectExpr("(c.churn_prob * c.clv)", "priority_score").
		Map("last_order_date")
}

func monthlyProjection() *ProjectionMap {
	return NewProjectionMap(ViewMonthlyMetrics, "m").
		Project("month").
		Project("active_customers").
		Project("orders").
		Project("revenue").
		Project("repeat_rate")
}

func segmentProjection() *ProjectionMap {
	return NewProjectionMap(ViewSegmentKPIs, "s").
		Project("segment").
		Project("revenue").
		Project("customers")
}

func dateArg(f FilterSelection) (string, string) {
	return f.StartDate.Format(models.DateLayout), f.EndDate.Format(models.DateLayout)
}

// MonthlyQuery selects monthly metrics whose month falls inside the date range.
func MonthlyQuery(f FilterSelection) (Query, error) {
	f = f.Normalize()
	if err := f.CheckRanges(); err != nil {
		return Query{}, err
	}
	start, end := dateArg(f)
	sql, args := NewBuilder(monthlyProjection(), SortField{Field: "month"}).
		WhereBetween("month", start, end).
		Build()
	return Query{SQL: sql, Args: args}, nil
}

// SegmentQuery selects segment KPIs, optionally narrowed to one segment.
// The segment view carries no dates, so the date range does not apply.
func SegmentQuery(f FilterSelection) (Query, error) {
	f = f.Normalize()
	if err := f.CheckRanges(); err != nil {
		return Query{}, err
	}
	sql, args := NewBuilder(segmentProjection(), SortField{Field: "revenue", Descending: true}).
		WhereEquals("segment", f.segmentValue()).
		Build()
	return Query{SQL: sql, Args: args}, nil
}

// RiskQuery selects scored customers above the churn and CLV thresholds, ranked by
// churn_prob * clv with customer_id breaking ties.
func RiskQuery(f FilterSelection) (Query, error) {
	f = f.Normalize()
	if err := f.CheckRanges(); err != nil {
		return Query{}, err
	}
	start, end := dateArg(f)
	sql, args := NewBuilder(riskProjection(), SortField{Field: "priority_score", Descending: true}, SortField{Field: "customer_id"}).
		WhereBetween("last_order_date", start, end).
		WhereEquals("country", f.countryValue()).
		WhereEquals("segment", f.segmentValue()).
		WhereNotNull("churn_prob", "clv").
		WhereGTE("churn_prob", f.ChurnMin).
		WhereGTE("clv", f.CLVMin).
		Build()
	return Query{SQL: sql, Args: args}, nil
}

// CustomerQuery selects the drilldown list ordered by revenue then customer_id,
// capped at CustomerListLimit rows.
func CustomerQuery(f FilterSelection) (Query, error) {
	f = f.Normalize()
	if err := f.CheckRanges(); err != nil {
		return Query{}, err
	}
	start, end := dateArg(f)
	sql, args := NewBuilder(customerProjection(), SortField{Field: "monetary_revenue", Descending: true}, SortField{Field: "customer_id"}).
		WhereBetween("last_order_date", start, end).
		WhereEquals("country", f.countryValue()).
		WhereEquals("segment", f.segmentValue()).
		Limit(CustomerListLimit).
		Build()
	return Query{SQL: sql, Args: args}, nil
}

func CustomerByIDQuery(customerID string) Query {
	sql, args := NewBuilder(customerProjection()).
		WhereEquals("customer_id", customerID).
		Limit(1).
		Build()
	return Query{SQL: sql, Args: args}
}

// PredictionCountQuery counts customers that carry both churn_prob and clv.
func PredictionCountQuery() Query {
	sql, args := NewBuilder(customerProjection()).
		WhereNotNull("churn_prob", "clv").
		BuildCount()
	return Query{SQL: sql, Args: args}
}

func DateBoundsQuery() Query {
	return Query{SQL: fmt.Sprintf(
		"SELECT MIN(last_order_date) AS min_date, MAX(last_order_date) AS max_date FROM %s",
		ViewCustomerMaster,
	)}
}

// DistinctQuery lists the non-null distinct values of country or segment.
func DistinctQuery(column string) (Query, error) {
	switch column {
	case "country", "segment":
	default:
		return Query{}, fmt.Errorf("%w: no distinct listing for column %q", ErrInvalidFilter, column)
	}
	return Query{SQL: fmt.Sprintf(
		"SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s",
		column, ViewCustomerMaster,
	)}, nil
}

// TopAtRiskQuery reads the precomputed top-at-risk view.
func TopAtRiskQuery(limit int) Query {
	sql, args := NewBuilder(
		NewProjectionMap(ViewTopAtRisk, "t").
			Project("customer_id").
			Project("country").
			Project("segment").
			Project("monetary_revenue").
			Project("churn_prob").
			Project("clv").
			Project("priority_score"),
		SortField{Field: "priority_score", Descending: true},
		SortField{Field: "customer_id"},
	).Limit(limit).Build()
	return Query{SQL: sql, Args: args}
}
