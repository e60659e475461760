package service

import (
	"context"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
)

// PredictionRepository reads scoring inputs and replaces the prediction set.
type PredictionRepository interface {
	GetCustomerAggregates(ctx context.Context) ([]models.CustomerAggregate, error)
	ReplacePredictions(ctx context.Context, preds []models.CustomerPrediction) (int64, error)
}

// CustomerRepository defines the read-only view queries used by the dashboard.
type CustomerRepository interface {
	MonthlyMetrics(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error)
	SegmentKPIs(ctx context.Context, q query.Query) ([]models.SegmentKPI, error)
	RiskRows(ctx context.Context, q query.Query) ([]models.RiskRow, error)
	Customers(ctx context.Context, q query.Query) ([]models.CustomerRow, error)
	CustomerByID(ctx context.Context, customerID string) (models.CustomerRow, error)
	PredictionCount(ctx context.Context) (int64, error)
	DateBounds(ctx context.Context) (models.DateBounds, error)
	Distinct(ctx context.Context, column string) ([]string, error)
}
