package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
	"github.com/godilite/customer-intel/internal/service"
)

const (
	defaultGRPCTimeout    = 10 * time.Second
	defaultScoringTimeout = 5 * time.Minute
)

// Request field names shared by every filtered method.
const (
	fieldStartDate  = "start_date"
	fieldEndDate    = "end_date"
	fieldCountry    = "country"
	fieldSegment    = "segment"
	fieldChurnMin   = "churn_min"
	fieldCLVMin     = "clv_min"
	fieldCustomerID = "customer_id"
)

type GRPCHandlers struct {
	dashboard DashboardService
	scoring   ScoringRunner
	logger    *zap.Logger
	timeout   time.Duration
}

var _ DashboardServer = (*GRPCHandlers)(nil)

// NewGRPCHandlers initializes the gRPC handlers. scoring may be nil, in which
// case RefreshPredictions answers Unimplemented.
func NewGRPCHandlers(dashboard DashboardService, scoring ScoringRunner, logger *zap.Logger) *GRPCHandlers {
	if dashboard == nil {
		panic("nil DashboardService provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandlers{
		dashboard: dashboard,
		scoring:   scoring,
		logger:    logger.Named("grpc-handler"),
		timeout:   defaultGRPCTimeout,
	}
}

func parseSelection(req *structpb.Struct) (query.FilterSelection, error) {
	var (
		f   query.FilterSelection
		err error
	)
	fields := req.GetFields()

	if f.StartDate, err = dateField(fields, fieldStartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = dateField(fields, fieldEndDate); err != nil {
		return f, err
	}
	if f.Country, err = stringField(fields, fieldCountry); err != nil {
		return f, err
	}
	if f.Segment, err = stringField(fields, fieldSegment); err != nil {
		return f, err
	}
	if f.ChurnMin, err = numberField(fields, fieldChurnMin); err != nil {
		return f, err
	}
	if f.CLVMin, err = numberField(fields, fieldCLVMin); err != nil {
		return f, err
	}
	return f, nil
}

func stringField(fields map[string]*structpb.Value, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return strings.TrimSpace(k.StringValue), nil
	default:
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
	}
}

func numberField(fields map[string]*structpb.Value, name string) (float64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, nil
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
}

func dateField(fields map[string]*structpb.Value, name string) (time.Time, error) {
	s, err := stringField(fields, name)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s must be a date in YYYY-MM-DD form", name)
	}
	return t, nil
}

// toStruct converts a JSON-tagged DTO into a google.protobuf.Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}
	return out, nil
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrInvalidFilter):
		s.logger.Info("invalid filter", zap.String("op", op), zap.Error(err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrNotFound):
		s.logger.Info("not found", zap.String("op", op), zap.Error(err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrDataUnavailable):
		s.logger.Error("data unavailable", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Unavailable, "customer data is unavailable, run the loader and scoring job")
	case errors.Is(err, service.ErrPersistenceFailure):
		s.logger.Error("persistence failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func respond[T any](ctx context.Context, s *GRPCHandlers, op string, timeout time.Duration, fn func(context.Context) (T, error)) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(ctx)
	if err != nil {
		return nil, s.handleError(ctx, op, err)
	}

	out, err := toStruct(result)
	if err != nil {
		s.logger.Error("encode response", zap.String("op", op), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func filtered[T any](ctx context.Context, s *GRPCHandlers, op string, req *structpb.Struct, fn func(context.Context, query.FilterSelection) (T, error)) (*structpb.Struct, error) {
	f, err := parseSelection(req)
	if err != nil {
		return nil, err
	}
	return respond(ctx, s, op, s.timeout, func(ctx context.Context) (T, error) {
		return fn(ctx, f)
	})
}

func (s *GRPCHandlers) GetFilterOptions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return respond(ctx, s, MethodGetFilterOptions, s.timeout, s.dashboard.FilterOptions)
}

func (s *GRPCHandlers) GetOverview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return filtered(ctx, s, MethodGetOverview, req, s.dashboard.Overview)
}

func (s *GRPCHandlers) GetSegments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return filtered(ctx, s, MethodGetSegments, req, s.dashboard.Segments)
}

func (s *GRPCHandlers) GetRiskValue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return filtered(ctx, s, MethodGetRiskValue, req, s.dashboard.RiskValue)
}

func (s *GRPCHandlers) GetCustomers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return filtered(ctx, s, MethodGetCustomers, req, s.dashboard.Customers)
}

func (s *GRPCHandlers) GetCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(req.GetFields(), fieldCustomerID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}
	return respond(ctx, s, MethodGetCustomer, s.timeout, func(ctx context.Context) (service.Customer, error) {
		return s.dashboard.Customer(ctx, id)
	})
}

func (s *GRPCHandlers) RefreshPredictions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.scoring == nil {
		return nil, status.Error(codes.Unimplemented, "scoring is disabled on this server")
	}
	return respond(ctx, s, MethodRefreshPredictions, defaultScoringTimeout, s.scoring.Run)
}
