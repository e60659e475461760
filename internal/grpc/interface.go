package grpc

import (
	"context"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/service"
)

type DashboardService interface {
	FilterOptions(ctx context.Context) (service.FilterOptions, error)
	Overview(ctx context.Context, f query.FilterSelection) (service.Overview, error)
	Segments(ctx context.Context, f query.FilterSelection) (service.Segments, error)
	RiskValue(ctx context.Context, f query.FilterSelection) (service.RiskValue, error)
	Customers(ctx context.Context, f query.FilterSelection) (service.CustomerList, error)
	Customer(ctx context.Context, customerID string) (service.Customer, error)
}

type ScoringRunner interface {
	Run(ctx context.Context) (service.RunSummary, error)
}
