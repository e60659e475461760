package mocks

import (
	"context"
	"errors"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
)

// MockPredictionRepository is a mock implementation of the PredictionRepository interface
// for testing the service layer.
type MockPredictionRepository struct {
	GetCustomerAggregatesFunc func(ctx context.Context) ([]models.CustomerAggregate, error)
	ReplacePredictionsFunc    func(ctx context.Context, preds []models.CustomerPrediction) (int64, error)
}

func (m *MockPredictionRepository) GetCustomerAggregates(ctx context.Context) ([]models.CustomerAggregate, error) {
	if m.GetCustomerAggregatesFunc != nil {
		return m.GetCustomerAggregatesFunc(ctx)
	}
	return nil, errors.New("GetCustomerAggregatesFunc not implemented")
}

func (m *MockPredictionRepository) ReplacePredictions(ctx context.Context, preds []models.CustomerPrediction) (int64, error) {
	if m.ReplacePredictionsFunc != nil {
		return m.ReplacePredictionsFunc(ctx, preds)
	}
	return 0, errors.New("ReplacePredictionsFunc not implemented")
}

// MockCustomerRepository is a mock implementation of the CustomerRepository interface.
type MockCustomerRepository struct {
	MonthlyMetricsFunc  func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error)
	SegmentKPIsFunc     func(ctx context.Context, q query.Query) ([]models.SegmentKPI, error)
	RiskRowsFunc        func(ctx context.Context, q query.Query) ([]models.RiskRow, error)
	CustomersFunc       func(ctx context.Context, q query.Query) ([]models.CustomerRow, error)
	CustomerByIDFunc    func(ctx context.Context, customerID string) (models.CustomerRow, error)
	PredictionCountFunc func(ctx context.Context) (int64, error)
	DateBoundsFunc      func(ctx context.Context) (models.DateBounds, error)
	DistinctFunc        func(ctx context.Context, column string) ([]string, error)
}

func (m *MockCustomerRepository) MonthlyMetrics(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
	if m.MonthlyMetricsFunc != nil {
		return m.MonthlyMetricsFunc(ctx, q)
	}
	return nil, errors.New("MonthlyMetricsFunc not implemented")
}

func (m *MockCustomerRepository) SegmentKPIs(ctx context.Context, q query.Query) ([]models.SegmentKPI, error) {
	if m.SegmentKPIsFunc != nil {
		return m.SegmentKPIsFunc(ctx, q)
	}
	return nil, errors.New("SegmentKPIsFunc not implemented")
}

func (m *MockCustomerRepository) RiskRows(ctx context.Context, q query.Query) ([]models.RiskRow, error) {
	if m.RiskRowsFunc != nil {
		return m.RiskRowsFunc(ctx, q)
	}
	return nil, errors.New("RiskRowsFunc not implemented")
}

func (m *MockCustomerRepository) Customers(ctx context.Context, q query.Query) ([]models.CustomerRow, error) {
	if m.CustomersFunc != nil {
		return m.CustomersFunc(ctx, q)
	}
	return nil, errors.New("CustomersFunc not implemented")
}

func (m *MockCustomerRepository) CustomerByID(ctx context.Context, customerID string) (models.CustomerRow, error) {
	if m.CustomerByIDFunc != nil {
		return m.CustomerByIDFunc(ctx, customerID)
	}
	return models.CustomerRow{}, errors.New("CustomerByIDFunc not implemented")
}

func (m *MockCustomerRepository) PredictionCount(ctx context.Context) (int64, error) {
	if m.PredictionCountFunc != nil {
		return m.PredictionCountFunc(ctx)
	}
	return 0, errors.New("PredictionCountFunc not implemented")
}

func (m *MockCustomerRepository) DateBounds(ctx context.Context) (models.DateBounds, error) {
	if m.DateBoundsFunc != nil {
		return m.DateBoundsFunc(ctx)
	}
	return models.DateBounds{}, errors.New("DateBoundsFunc not implemented")
}

func (m *MockCustomerRepository) Distinct(ctx context.Context, column string) ([]string, error) {
	if m.DistinctFunc != nil {
		return m.DistinctFunc(ctx, column)
	}
	return nil, errors.New("DistinctFunc not implemented")
}
