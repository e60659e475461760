package mocks

import (
	"context"
	"errors"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/service"
)

// MockDashboardService is a function-field mock of the handler's DashboardService.
type MockDashboardService struct {
	FilterOptionsFunc func(ctx context.Context) (service.FilterOptions, error)
	OverviewFunc      func(ctx context.Context, f query.FilterSelection) (service.Overview, error)
	SegmentsFunc      func(ctx context.Context, f query.FilterSelection) (service.Segments, error)
	RiskValueFunc     func(ctx context.Context, f query.FilterSelection) (service.RiskValue, error)
	CustomersFunc     func(ctx context.Context, f query.FilterSelection) (service.CustomerList, error)
	CustomerFunc      func(ctx context.Context, customerID string) (service.Customer, error)
}

func (m *MockDashboardService) FilterOptions(ctx context.Context) (service.FilterOptions, error) {
	if m.FilterOptionsFunc != nil {
		return m.FilterOptionsFunc(ctx)
	}
	return service.FilterOptions{}, errors.New("FilterOptionsFunc not implemented")
}

func (m *MockDashboardService) Overview(ctx context.Context, f query.FilterSelection) (service.Overview, error) {
	if m.OverviewFunc != nil {
		return m.OverviewFunc(ctx, f)
	}
	return service.Overview{}, errors.New("OverviewFunc not implemented")
}

func (m *MockDashboardService) Segments(ctx context.Context, f query.FilterSelection) (service.Segments, error) {
	if m.SegmentsFunc != nil {
		return m.SegmentsFunc(ctx, f)
	}
	return service.Segments{}, errors.New("SegmentsFunc not implemented")
}

func (m *MockDashboardService) RiskValue(ctx context.Context, f query.FilterSelection) (service.RiskValue, error) {
	if m.RiskValueFunc != nil {
		return m.RiskValueFunc(ctx, f)
	}
	return service.RiskValue{}, errors.New("RiskValueFunc not implemented")
}

func (m *MockDashboardService) Customers(ctx context.Context, f query.FilterSelection) (service.CustomerList, error) {
	if m.CustomersFunc != nil {
		return m.CustomersFunc(ctx, f)
	}
	return service.CustomerList{}, errors.New("CustomersFunc not implemented")
}

func (m *MockDashboardService) Customer(ctx context.Context, customerID string) (service.Customer, error) {
	if m.CustomerFunc != nil {
		return m.CustomerFunc(ctx, customerID)
	}
	return service.Customer{}, errors.New("CustomerFunc not implemented")
}

// MockScoringRunner is a function-field mock of the handler's ScoringRunner.
type MockScoringRunner struct {
	RunFunc func(ctx context.Context) (service.RunSummary, error)
}

func (m *MockScoringRunner) Run(ctx context.Context) (service.RunSummary, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return service.RunSummary{}, errors.New("RunFunc not implemented")
}
