package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDashboardService is a mock implementation of DashboardServicer
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) FilterOptions(ctx context.Context) (service.FilterOptions, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.FilterOptions), args.Error(1)
}

func (m *MockDashboardService) Overview(ctx context.Context, f query.FilterSelection) (service.Overview, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(service.Overview), args.Error(1)
}

func (m *MockDashboardService) Segments(ctx context.Context, f query.FilterSelection) (service.Segments, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(service.Segments), args.Error(1)
}

func (m *MockDashboardService) RiskValue(ctx context.Context, f query.FilterSelection) (service.RiskValue, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(service.RiskValue), args.Error(1)
}

func (m *MockDashboardService) Customers(ctx context.Context, f query.FilterSelection) (service.CustomerList, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(service.CustomerList), args.Error(1)
}

func (m *MockDashboardService) Customer(ctx context.Context, id string) (service.Customer, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(service.Customer), args.Error(1)
}

type MockScoringRunner struct {
	mock.Mock
}

func (m *MockScoringRunner) Run(ctx context.Context) (service.RunSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.RunSummary), args.Error(1)
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandler_HealthCheck(t *testing.T) {
	t.Run("no checker", func(t *testing.T) {
		w := serve(t, NewHandler(new(MockDashboardService), zap.NewNop()), http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
	})

	t.Run("store down", func(t *testing.T) {
		h := NewHandler(new(MockDashboardService), zap.NewNop(), WithHealthCheck(func(ctx context.Context) error {
			return errors.New("dial tcp: connection refused")
		}))
		w := serve(t, h, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandler_GetFilters(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("FilterOptions", mock.Anything).Return(service.FilterOptions{
		MinDate:   "2010-12-01",
		MaxDate:   "2011-12-09",
		Countries: []string{"France", "Germany"},
		Segments:  []string{"Recent"},
	}, nil)

	w := serve(t, NewHandler(svc, zap.NewNop()), http.MethodGet, "/api/filters")

	assert.Equal(t, http.StatusOK, w.Code)
	got := decode[service.FilterOptions](t, w)
	assert.Equal(t, []string{"France", "Germany"}, got.Countries)
	svc.AssertExpectations(t)
}

func TestHandler_GetOverview_BindsFilter(t *testing.T) {
	svc := new(MockDashboardService)
	want := query.FilterSelection{
		StartDate: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2011, 3, 31, 0, 0, 0, 0, time.UTC),
		Country:   "France",
		Segment:   "At Risk",
		ChurnMin:  0.5,
		CLVMin:    100,
	}
	svc.On("Overview", mock.Anything, want).Return(service.Overview{TotalRevenue: 42, TotalOrders: 2}, nil)

	w := serve(t, NewHandler(svc, zap.NewNop()), http.MethodGet,
		"/api/overview?start_date=2011-01-01&end_date=2011-03-31&country=France&segment=At+Risk&churn_min=0.5&clv_min=100")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42.0, decode[service.Overview](t, w).TotalRevenue)
	svc.AssertExpectations(t)
}

func TestHandler_RejectsBadQuery(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{name: "malformed date", target: "/api/overview?start_date=2011-13-40"},
		{name: "churn above one", target: "/api/risk?churn_min=1.5"},
		{name: "negative clv", target: "/api/customers?clv_min=-1"},
		{name: "non numeric churn", target: "/api/segments?churn_min=high"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			w := serve(t, NewHandler(svc, zap.NewNop()), http.MethodGet, tc.target)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation_error", decode[ErrorResponse](t, w).Error)
			svc.AssertNotCalled(t, "Overview")
			svc.AssertNotCalled(t, "RiskValue")
		})
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{name: "invalid filter", err: fmt.Errorf("%w: unknown country", service.ErrInvalidFilter), code: http.StatusBadRequest, kind: "validation_error"},
		{name: "unavailable", err: fmt.Errorf("%w: no such table", service.ErrDataUnavailable), code: http.StatusServiceUnavailable, kind: "data_unavailable"},
		{name: "unexpected", err: errors.New("boom"), code: http.StatusInternalServerError, kind: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			svc.On("Segments", mock.Anything, mock.Anything).Return(service.Segments{}, tc.err)

			w := serve(t, NewHandler(svc, zap.NewNop()), http.MethodGet, "/api/segments")

			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.kind, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestHandler_EmptyResultIsOK(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("RiskValue", mock.Anything, mock.Anything).Return(service.RiskValue{
		PredictionsAvailable: false,
		Empty:                true,
		Message:              "No predictions yet.",
	}, nil)

	w := serve(t, NewHandler(svc, zap.NewNop()), http.MethodGet, "/api/risk")

	assert.Equal(t, http.StatusOK, w.Code)
	got := decode[service.RiskValue](t, w)
	assert.True(t, got.Empty)
	assert.False(t, got.PredictionsAvailable)
}

func TestHandler_GetCustomer(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Customer", mock.Anything, "12347").Return(service.Customer{CustomerID: "12347", Country: "Iceland"}, nil)
	svc.On("Customer", mock.Anything, "99999").Return(service.Customer{}, fmt.Errorf("%w: customer 99999", service.ErrNotFound))
	h := NewHandler(svc, zap.NewNop())

	w := serve(t, h, http.MethodGet, "/api/customers/12347")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Iceland", decode[service.Customer](t, w).Country)

	w = serve(t, h, http.MethodGet, "/api/customers/99999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Error)
	svc.AssertExpectations(t)
}

func TestHandler_RefreshPredictions(t *testing.T) {
	t.Run("route absent without scoring", func(t *testing.T) {
		w := serve(t, NewHandler(new(MockDashboardService), zap.NewNop()), http.MethodPost, "/api/predictions/refresh")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("runs scoring", func(t *testing.T) {
		runner := new(MockScoringRunner)
		runner.On("Run", mock.Anything).Return(service.RunSummary{RunID: "r1", Customers: 3, Inserted: 3}, nil)
		h := NewHandler(new(MockDashboardService), zap.NewNop(), WithScoring(runner))

		w := serve(t, h, http.MethodPost, "/api/predictions/refresh")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 3, decode[service.RunSummary](t, w).Inserted)
		runner.AssertExpectations(t)
	})

	t.Run("persistence failure", func(t *testing.T) {
		runner := new(MockScoringRunner)
		runner.On("Run", mock.Anything).Return(service.RunSummary{}, fmt.Errorf("%w: commit", service.ErrPersistenceFailure))
		h := NewHandler(new(MockDashboardService), zap.NewNop(), WithScoring(runner))

		w := serve(t, h, http.MethodPost, "/api/predictions/refresh")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
