package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
	"github.com/godilite/customer-intel/internal/service/mocks"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

// baseRepo answers the filter-option reads used by validation.
func baseRepo() *mocks.MockCustomerRepository {
	return &mocks.MockCustomerRepository{
		DateBoundsFunc: func(ctx context.Context) (models.DateBounds, error) {
			return models.DateBounds{Min: models.NewDate(2010, 12, 1), Max: models.NewDate(2011, 12, 9)}, nil
		},
		DistinctFunc: func(ctx context.Context, column string) ([]string, error) {
			switch column {
			case "country":
				return []string{"France", "Germany", "United Kingdom"}, nil
			case "segment":
				return []string{"At Risk", "Champions", "Loyal"}, nil
			}
			return nil, errors.New("unexpected column " + column)
		},
	}
}

func newDashboard(repo CustomerRepository, opts ...DashboardOption) *DashboardService {
	// zap.NewNop keeps background cache goroutines from logging after a test ends
	return NewDashboardService(repo, zap.NewNop(), append([]DashboardOption{WithClock(fixedNow)}, opts...)...)
}

func TestNewDashboardService(t *testing.T) {
	assert.Panics(t, func() { NewDashboardService(nil, zap.NewNop()) })

	s := NewDashboardService(baseRepo(), nil, WithRiskTopN(0), WithCachePrefix("x"))
	assert.Equal(t, DefaultRiskTopN, s.riskTopN)
	assert.Equal(t, DefaultCacheTTL, s.cacheTTL)
	assert.Equal(t, "x", s.CachePrefix())
}

func TestFilterOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("reads bounds and domains", func(t *testing.T) {
		opts, err := newDashboard(baseRepo()).FilterOptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2010-12-01", opts.MinDate)
		assert.Equal(t, "2011-12-09", opts.MaxDate)
		assert.Equal(t, []string{"France", "Germany", "United Kingdom"}, opts.Countries)
		assert.Len(t, opts.Segments, 3)
	})

	t.Run("any failed read is data unavailable", func(t *testing.T) {
		repo := baseRepo()
		repo.DistinctFunc = func(ctx context.Context, column string) ([]string, error) {
			return nil, errors.New("connection refused")
		}
		_, err := newDashboard(repo).FilterOptions(ctx)
		assert.ErrorIs(t, err, ErrDataUnavailable)
	})

	t.Run("empty store", func(t *testing.T) {
		repo := &mocks.MockCustomerRepository{
			DateBoundsFunc: func(ctx context.Context) (models.DateBounds, error) { return models.DateBounds{}, nil },
			DistinctFunc:   func(ctx context.Context, column string) ([]string, error) { return nil, nil },
		}
		s := newDashboard(repo)

		opts, err := s.FilterOptions(ctx)
		require.NoError(t, err)
		assert.Empty(t, opts.MinDate)
		assert.NotNil(t, opts.Countries)

		def, err := s.DefaultSelection(ctx)
		require.NoError(t, err)
		assert.Equal(t, query.FallbackStartDate, def.StartDate)
		assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), def.EndDate)
	})
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	f := query.FilterSelection{
		StartDate: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2011, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	t.Run("totals", func(t *testing.T) {
		repo := baseRepo()
		repo.MonthlyMetricsFunc = func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
			assert.Equal(t, []any{"2011-01-01", "2011-03-31"}, q.Args)
			return []models.MonthlyMetric{
				{Month: models.NewDate(2011, 1, 1), ActiveCustomers: 10, Orders: 12, Revenue: 100.5, RepeatRate: 0.2},
				{Month: models.NewDate(2011, 2, 1), ActiveCustomers: 15, Orders: 20, Revenue: 200, RepeatRate: 0.3},
			}, nil
		}

		out, err := newDashboard(repo).Overview(ctx, f)
		require.NoError(t, err)
		assert.False(t, out.Empty)
		require.Len(t, out.Months, 2)
		assert.Equal(t, "2011-01-01", out.Months[0].Month)
		assert.Equal(t, 300.5, out.TotalRevenue)
		assert.EqualValues(t, 32, out.TotalOrders)
		assert.EqualValues(t, 12, out.AvgMonthlyActive)
	})

	t.Run("no rows is an empty result", func(t *testing.T) {
		repo := baseRepo()
		repo.MonthlyMetricsFunc = func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
			return []models.MonthlyMetric{}, nil
		}

		out, err := newDashboard(repo).Overview(ctx, f)
		require.NoError(t, err)
		assert.True(t, out.Empty)
		assert.Equal(t, msgNoMonthly, out.Message)
		assert.NotNil(t, out.Months)
	})

	t.Run("inverted range", func(t *testing.T) {
		bad := f
		bad.StartDate, bad.EndDate = f.EndDate, f.StartDate
		_, err := newDashboard(baseRepo()).Overview(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("missing dates default to the observed range", func(t *testing.T) {
		repo := baseRepo()
		repo.MonthlyMetricsFunc = func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
			assert.Equal(t, []any{"2010-12-01", "2011-12-09"}, q.Args)
			return nil, nil
		}
		_, err := newDashboard(repo).Overview(ctx, query.FilterSelection{})
		require.NoError(t, err)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := baseRepo()
		repo.MonthlyMetricsFunc = func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
			return nil, errors.New("query timeout")
		}
		_, err := newDashboard(repo).Overview(ctx, f)
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.Contains(t, err.Error(), "query timeout")
	})
}

func TestSegments(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown segment is rejected before querying", func(t *testing.T) {
		repo := baseRepo()
		repo.SegmentKPIsFunc = func(ctx context.Context, q query.Query) ([]models.SegmentKPI, error) {
			t.Fatal("must not query with an invalid filter")
			return nil, nil
		}
		_, err := newDashboard(repo).Segments(ctx, query.FilterSelection{Segment: "Whales"})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})

	t.Run("known segment", func(t *testing.T) {
		repo := baseRepo()
		repo.SegmentKPIsFunc = func(ctx context.Context, q query.Query) ([]models.SegmentKPI, error) {
			assert.Equal(t, []any{"Loyal"}, q.Args)
			return []models.SegmentKPI{{Segment: "Loyal", Revenue: 1234.5, Customers: 7}}, nil
		}
		out, err := newDashboard(repo).Segments(ctx, query.FilterSelection{Segment: "Loyal"})
		require.NoError(t, err)
		assert.Equal(t, []SegmentPoint{{Segment: "Loyal", Revenue: 1234.5, Customers: 7}}, out.Segments)
	})

	t.Run("empty", func(t *testing.T) {
		repo := baseRepo()
		repo.SegmentKPIsFunc = func(ctx context.Context, q query.Query) ([]models.SegmentKPI, error) {
			return nil, nil
		}
		out, err := newDashboard(repo).Segments(ctx, query.FilterSelection{})
		require.NoError(t, err)
		assert.True(t, out.Empty)
		assert.Equal(t, msgNoSegments, out.Message)
	})
}

func riskRow(id, country string, churn, clv float64) models.RiskRow {
	return models.RiskRow{
		CustomerID:    id,
		Country:       sql.NullString{String: country, Valid: true},
		Segment:       sql.NullString{String: "At Risk", Valid: true},
		ChurnProb:     churn,
		CLV:           clv,
		PriorityScore: churn * clv,
	}
}

func TestRiskValue(t *testing.T) {
	ctx := context.Background()

	t.Run("predictions not available", func(t *testing.T) {
		repo := baseRepo()
		repo.PredictionCountFunc = func(ctx context.Context) (int64, error) { return 0, nil }
		repo.RiskRowsFunc = func(ctx context.Context, q query.Query) ([]models.RiskRow, error) {
			t.Fatal("risk rows must not be read without predictions")
			return nil, nil
		}

		out, err := newDashboard(repo).RiskValue(ctx, query.FilterSelection{})
		require.NoError(t, err)
		assert.False(t, out.PredictionsAvailable)
		assert.True(t, out.Empty)
		assert.Equal(t, msgNoPredictions, out.Message)
	})

	t.Run("germany above thresholds", func(t *testing.T) {
		repo := baseRepo()
		repo.PredictionCountFunc = func(ctx context.Context) (int64, error) { return 3, nil }
		repo.RiskRowsFunc = func(ctx context.Context, q query.Query) ([]models.RiskRow, error) {
			assert.Contains(t, q.SQL, "c.country = $3")
			assert.Contains(t, q.SQL, "c.churn_prob >= $4 AND c.clv >= $5")
			assert.Equal(t, []any{"2010-12-01", "2011-12-09", "Germany", 0.5, 100.0}, q.Args)
			return []models.RiskRow{
				riskRow("G1", "Germany", 0.9, 500),
				riskRow("G2", "Germany", 0.5, 120),
			}, nil
		}

		out, err := newDashboard(repo).RiskValue(ctx, query.FilterSelection{Country: "Germany", ChurnMin: 0.5, CLVMin: 100})
		require.NoError(t, err)
		assert.True(t, out.PredictionsAvailable)
		require.Len(t, out.Customers, 2)
		assert.Equal(t, "G1", out.Customers[0].CustomerID)
		assert.InDelta(t, 450.0, out.Customers[0].PriorityScore, 1e-9)
	})

	t.Run("top list is capped", func(t *testing.T) {
		repo := baseRepo()
		repo.PredictionCountFunc = func(ctx context.Context) (int64, error) { return 3, nil }
		repo.RiskRowsFunc = func(ctx context.Context, q query.Query) ([]models.RiskRow, error) {
			return []models.RiskRow{
				riskRow("A", "France", 0.9, 300),
				riskRow("B", "France", 0.8, 200),
				riskRow("C", "France", 0.7, 100),
			}, nil
		}

		out, err := newDashboard(repo, WithRiskTopN(2)).RiskValue(ctx, query.FilterSelection{})
		require.NoError(t, err)
		assert.Len(t, out.Customers, 3)
		require.Len(t, out.Top, 2)
		assert.Equal(t, "B", out.Top[1].CustomerID)
	})

	t.Run("no customers above thresholds", func(t *testing.T) {
		repo := baseRepo()
		repo.PredictionCountFunc = func(ctx context.Context) (int64, error) { return 3, nil }
		repo.RiskRowsFunc = func(ctx context.Context, q query.Query) ([]models.RiskRow, error) { return nil, nil }

		out, err := newDashboard(repo).RiskValue(ctx, query.FilterSelection{ChurnMin: 0.95})
		require.NoError(t, err)
		assert.True(t, out.PredictionsAvailable)
		assert.True(t, out.Empty)
		assert.Equal(t, msgNoRiskCustomers, out.Message)
	})

	t.Run("churn threshold out of range", func(t *testing.T) {
		_, err := newDashboard(baseRepo()).RiskValue(ctx, query.FilterSelection{ChurnMin: 1.5})
		assert.ErrorIs(t, err, ErrInvalidFilter)
	})
}

func TestCustomers(t *testing.T) {
	ctx := context.Background()

	repo := baseRepo()
	repo.CustomersFunc = func(ctx context.Context, q query.Query) ([]models.CustomerRow, error) {
		assert.True(t, strings.HasSuffix(q.SQL, "LIMIT 1000"))
		return []models.CustomerRow{
			{
				CustomerID:      "12347",
				Country:         sql.NullString{String: "Iceland", Valid: true},
				MonetaryRevenue: sql.NullFloat64{Float64: 4310, Valid: true},
				LastOrderDate:   models.NewDate(2011, 12, 7),
				ChurnProb:       sql.NullFloat64{Float64: 0.05, Valid: true},
				CLV:             sql.NullFloat64{Float64: 9000, Valid: true},
			},
			{CustomerID: "12348"},
		}, nil
	}

	out, err := newDashboard(repo).Customers(ctx, query.FilterSelection{})
	require.NoError(t, err)
	require.Len(t, out.Customers, 2)

	first := out.Customers[0]
	assert.Equal(t, "Iceland", first.Country)
	assert.Equal(t, "2011-12-07", first.LastOrderDate)
	require.NotNil(t, first.ChurnProb)
	assert.Equal(t, 0.05, *first.ChurnProb)

	assert.Nil(t, out.Customers[1].ChurnProb, "unscored customers have no prediction")
	assert.Nil(t, out.Customers[1].CLV)
}

func TestCustomer(t *testing.T) {
	ctx := context.Background()

	repo := baseRepo()
	repo.CustomerByIDFunc = func(ctx context.Context, id string) (models.CustomerRow, error) {
		switch id {
		case "12347":
			return models.CustomerRow{CustomerID: id}, nil
		case "broken":
			return models.CustomerRow{}, errors.New("connection reset")
		}
		return models.CustomerRow{}, sql.ErrNoRows
	}
	s := newDashboard(repo)

	c, err := s.Customer(ctx, "  12347 ")
	require.NoError(t, err)
	assert.Equal(t, "12347", c.CustomerID)

	_, err = s.Customer(ctx, "99999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Customer(ctx, "broken")
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = s.Customer(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestDashboardCaching(t *testing.T) {
	ctx := context.Background()
	f := query.FilterSelection{StartDate: time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2011, 2, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("miss stores the result under the prefixed key", func(t *testing.T) {
		keys := make(chan string, 1)
		c := &mocks.MockCacher{
			SetFunc: func(ctx context.Context, key string, value any, ttl time.Duration) error {
				keys <- key
				return nil
			},
		}
		repo := baseRepo()
		repo.MonthlyMetricsFunc = func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
			return []models.MonthlyMetric{{Month: models.NewDate(2011, 1, 1), Orders: 1}}, nil
		}

		_, err := newDashboard(repo, WithCache(c, time.Minute), WithCachePrefix("t")).Overview(ctx, f)
		require.NoError(t, err)

		select {
		case key := <-keys:
			assert.True(t, strings.HasPrefix(key, "t:overview:"), key)
		case <-time.After(2 * time.Second):
			t.Fatal("cache was not populated")
		}
	})

	t.Run("fresh hit is served without querying the repository", func(t *testing.T) {
		cachedOverview := Overview{Months: []MonthlyPoint{{Month: "2011-01-01", Orders: 99}}, TotalOrders: 99}
		raw, err := json.Marshal(cachedOverview)
		require.NoError(t, err)

		c := &mocks.MockCacher{
			GetFunc: func(ctx context.Context, key string, dest any) error {
				return json.Unmarshal(raw, dest)
			},
		}
		c.TTLFunc = func(ctx context.Context, key string) (time.Duration, error) {
			return 50 * time.Second, nil
		}
		var queries atomic.Int32
		repo := baseRepo()
		repo.MonthlyMetricsFunc = func(ctx context.Context, q query.Query) ([]models.MonthlyMetric, error) {
			queries.Add(1)
			return nil, nil
		}

		s := newDashboard(repo, WithCache(c, time.Minute))
		for range 3 {
			out, err := s.Overview(ctx, f)
			require.NoError(t, err)
			assert.EqualValues(t, 99, out.TotalOrders)
		}
		assert.Never(t, func() bool { return queries.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	})
}
