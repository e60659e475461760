package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
)

// CustomerRepository reads the aggregate views. It never writes.
type CustomerRepository struct {
	db Querier
}

func NewCustomerRepository(db Querier) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// MonthlyMetrics runs a query built by query.MonthlyQuery.
func (r *CustomerRepository) MonthlyMetrics(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
	rows, err := QueryMany(ctx, r.db, q.SQL, q.Args, func(s Scanner) (models.MonthlyMetric, error) {
		var m models.MonthlyMetric
		var revenue, repeat sql.NullFloat64
		if err := s.Scan(&m.Month, &m.ActiveCustomers, &m.Orders, &revenue, &repeat); err != nil {
			return m, fmt.Errorf("scan MonthlyMetrics row: %w", err)
		}
		m.Revenue = revenue.Float64
		m.RepeatRate = repeat.Float64
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query MonthlyMetrics: %w", err)
	}
	return rows, nil
}

// SegmentKPIs runs a query built by query.SegmentQuery.
func (r *CustomerRepository) SegmentKPIs(ctx context.Context, q query.Query) ([]models.SegmentKPI, error) {
	rows, err := QueryMany(ctx, r.db, q.SQL, q.Args, func(s Scanner) (models.SegmentKPI, error) {
		var k models.SegmentKPI
		var segment sql.NullString
		var revenue sql.NullFloat64
		if err := s.Scan(&segment, &revenue, &k.Customers); err != nil {
			return k, fmt.Errorf("scan SegmentKPIs row: %w", err)
		}
		k.Segment = segment.String
		k.Revenue = revenue.Float64
		return k, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query SegmentKPIs: %w", err)
	}
	return rows, nil
}

// RiskRows runs a query built by query.RiskQuery or query.TopAtRiskQuery.
func (r *CustomerRepository) RiskRows(ctx context.Context, q query.Query) ([]models.RiskRow, error) {
	rows, err := QueryMany(ctx, r.db, q.SQL, q.Args, scanRiskRow)
	if err != nil {
		return nil, fmt.Errorf("query RiskRows: %w", err)
	}
	return rows, nil
}

// Customers runs a query built by query.CustomerQuery.
func (r *CustomerRepository) Customers(ctx context.Context, q query.Query) ([]models.CustomerRow, error) {
	rows, err := QueryMany(ctx, r.db, q.SQL, q.Args, scanCustomerRow)
	if err != nil {
		return nil, fmt.Errorf("query Customers: %w", err)
	}
	return rows, nil
}

// CustomerByID returns sql.ErrNoRows when the customer does not exist.
func (r *CustomerRepository) CustomerByID(ctx context.Context, customerID string) (models.CustomerRow, error) {
	q := query.CustomerByIDQuery(customerID)
	row, err := scanCustomerRow(r.db.QueryRowContext(ctx, q.SQL, q.Args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CustomerRow{}, sql.ErrNoRows
		}
		return models.CustomerRow{}, fmt.Errorf("query CustomerByID: %w", mapError(err))
	}
	return row, nil
}

// PredictionCount counts customers with both churn_prob and clv. A missing
// predictions relation counts as zero.
func (r *CustomerRepository) PredictionCount(ctx context.Context) (int64, error) {
	q := query.PredictionCountQuery()
	var count int64
	if err := r.db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&count); err != nil {
		if errors.Is(mapError(err), ErrRelationMissing) {
			return 0, nil
		}
		return 0, fmt.Errorf("query PredictionCount: %w", err)
	}
	return count, nil
}

// DateBounds returns the min and max last_order_date; both are zero on an empty store.
func (r *CustomerRepository) DateBounds(ctx context.Context) (models.DateBounds, error) {
	q := query.DateBoundsQuery()
	var b models.DateBounds
	if err := r.db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&b.Min, &b.Max); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DateBounds{}, nil
		}
		return models.DateBounds{}, fmt.Errorf("query DateBounds: %w", mapError(err))
	}
	return b, nil
}

// Distinct lists the known values of country or segment.
func (r *CustomerRepository) Distinct(ctx context.Context, column string) ([]string, error) {
	q, err := query.DistinctQuery(column)
	if err != nil {
		return nil, err
	}
	values, err := QueryMany(ctx, r.db, q.SQL, q.Args, func(s Scanner) (string, error) {
		var v string
		err := s.Scan(&v)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("query Distinct %s: %w", column, err)
	}
	return values, nil
}

func scanRiskRow(s Scanner) (models.RiskRow, error) {
	var r models.RiskRow
	var revenue sql.NullFloat64
	if err := s.Scan(&r.CustomerID, &r.Country, &r.Segment, &revenue, &r.ChurnProb, &r.CLV, &r.PriorityScore); err != nil {
		return r, fmt.Errorf("scan RiskRows row: %w", err)
	}
	r.MonetaryRevenue = revenue.Float64
	return r, nil
}

func scanCustomerRow(s Scanner) (models.CustomerRow, error) {
	var c models.CustomerRow
	err := s.Scan(
		&c.CustomerID,
		&c.Country,
		&c.Segment,
		&c.RecencyDays,
		&c.FrequencyOrders,
		&c.MonetaryRevenue,
		&c.AvgOrderValue,
		&c.FirstOrderDate,
		&c.LastOrderDate,
		&c.ChurnProb,
		&c.CLV,
	)
	return c, err
}
