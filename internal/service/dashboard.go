package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository/models"
	"github.com/godilite/customer-intel/pkg/cache"
)

const (
	DefaultCachePrefix  = "custintel:dash"
	DefaultCacheTTL     = 600 * time.Second
	DefaultRiskTopN     = 50
	DefaultQueryTimeout = 10 * time.Second

	msgNoMonthly       = "No monthly metrics found for the selected date range."
	msgNoSegments      = "No segment data available for the current filters."
	msgNoPredictions   = "Churn probability and CLV predictions are not available yet. Run a scoring pass to enable this view."
	msgNoRiskCustomers = "No customers meet the current risk filters."
	msgNoCustomers     = "No customers found for the selected filters."
)

// DashboardService answers the filtered dashboard reads. Results are cached per
// query text and bound parameters when a cache is configured.
type DashboardService struct {
	storage      CustomerRepository
	cache        cache.Cacher
	sf           singleflight.Group
	cacheTTL     time.Duration
	cachePrefix  string
	riskTopN     int
	queryTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

type DashboardOption func(*DashboardService)

func WithCache(c cache.Cacher, ttl time.Duration) DashboardOption {
	return func(s *DashboardService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithCachePrefix(prefix string) DashboardOption {
	return func(s *DashboardService) { s.cachePrefix = prefix }
}

func WithRiskTopN(n int) DashboardOption {
	return func(s *DashboardService) {
		if n > 0 {
			s.riskTopN = n
		}
	}
}

func WithQueryTimeout(d time.Duration) DashboardOption {
	return func(s *DashboardService) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

func NewDashboardService(storage CustomerRepository, logger *zap.Logger, opts ...DashboardOption) *DashboardService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	s := &DashboardService{
		storage:      storage,
		cacheTTL:     DefaultCacheTTL,
		cachePrefix:  DefaultCachePrefix,
		riskTopN:     DefaultRiskTopN,
		queryTimeout: DefaultQueryTimeout,
		now:          time.Now,
		logger:       logger.Named("dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CachePrefix is the key namespace a scoring run must invalidate.
func (s *DashboardService) CachePrefix() string {
	return s.cachePrefix
}

func cached[T any](ctx context.Context, s *DashboardService, key string, fn cache.FetchFunc[T]) (T, error) {
	return cache.FindAndCache(ctx, s.cache, &s.sf, key, s.cacheTTL, s.logger, func(ctx context.Context) (T, error) {
		dbCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
		return fn(dbCtx)
	})
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, op, err)
}

// FilterOptions returns the observed date range and the known countries and segments.
func (s *DashboardService) FilterOptions(ctx context.Context) (FilterOptions, error) {
	return cached(ctx, s, s.cachePrefix+":filters", func(ctx context.Context) (FilterOptions, error) {
		var (
			bounds    models.DateBounds
			countries []string
			segments  []string
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			bounds, err = s.storage.DateBounds(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			countries, err = s.storage.Distinct(gctx, "country")
			return err
		})
		g.Go(func() error {
			var err error
			segments, err = s.storage.Distinct(gctx, "segment")
			return err
		})
		if err := g.Wait(); err != nil {
			return FilterOptions{}, unavailable("filter options", err)
		}

		return FilterOptions{
			MinDate:   bounds.Min.String(),
			MaxDate:   bounds.Max.String(),
			Countries: nonNil(countries),
			Segments:  nonNil(segments),
		}, nil
	})
}

// DefaultSelection is the selection a dashboard starts from: the full observed date
// range with no country, segment or threshold filters.
func (s *DashboardService) DefaultSelection(ctx context.Context) (query.FilterSelection, error) {
	opts, err := s.FilterOptions(ctx)
	if err != nil {
		return query.FilterSelection{}, err
	}
	bounds, err := opts.bounds()
	if err != nil {
		return query.FilterSelection{}, unavailable("date bounds", err)
	}
	return query.DefaultSelection(bounds, s.now().UTC()), nil
}

func (o FilterOptions) bounds() (models.DateBounds, error) {
	var b models.DateBounds
	if err := b.Min.Scan(nilIfEmpty(o.MinDate)); err != nil {
		return b, err
	}
	if err := b.Max.Scan(nilIfEmpty(o.MaxDate)); err != nil {
		return b, err
	}
	return b, nil
}

// validate fills unset dates from the defaults and checks the selection against the
// known countries and segments.
func (s *DashboardService) validate(ctx context.Context, f query.FilterSelection) (query.FilterSelection, error) {
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		def, err := s.DefaultSelection(ctx)
		if err != nil {
			return f, err
		}
		if f.StartDate.IsZero() {
			f.StartDate = def.StartDate
		}
		if f.EndDate.IsZero() {
			f.EndDate = def.EndDate
		}
	}

	f = f.Normalize()
	if err := f.CheckRanges(); err != nil {
		return f, err
	}
	if f.Country == query.All && f.Segment == query.All {
		return f, nil
	}

	opts, err := s.FilterOptions(ctx)
	if err != nil {
		return f, err
	}
	if err := f.Validate(query.FilterDomain{Countries: opts.Countries, Segments: opts.Segments}); err != nil {
		return f, err
	}
	return f, nil
}

// Overview returns monthly metrics in the date range plus their totals.
func (s *DashboardService) Overview(ctx context.Context, f query.FilterSelection) (Overview, error) {
	f, err := s.validate(ctx, f)
	if err != nil {
		return Overview{}, err
	}
	q, err := query.MonthlyQuery(f)
	if err != nil {
		return Overview{}, err
	}

	return cached(ctx, s, q.CacheKey(s.cachePrefix+":overview"), func(ctx context.Context) (Overview, error) {
		rows, err := s.storage.MonthlyMetrics(ctx, q)
		if err != nil {
			return Overview{}, unavailable("monthly metrics", err)
		}

		out := Overview{Months: make([]MonthlyPoint, 0, len(rows))}
		if len(rows) == 0 {
			out.Empty = true
			out.Message = msgNoMonthly
			return out, nil
		}

		var activeSum int64
		for _, r := range rows {
			out.Months = append(out.Months, MonthlyPoint{
				Month:           r.Month.String(),
				ActiveCustomers: r.ActiveCustomers,
				Orders:          r.Orders,
				Revenue:         r.Revenue,
				RepeatRate:      r.RepeatRate,
			})
			out.TotalRevenue += r.Revenue
			out.TotalOrders += r.Orders
			activeSum += r.ActiveCustomers
		}
		out.AvgMonthlyActive = activeSum / int64(len(rows))
		return out, nil
	})
}

// Segments returns revenue and customer counts per segment. The segment view is
// not dated, so only the segment filter applies.
func (s *DashboardService) Segments(ctx context.Context, f query.FilterSelection) (Segments, error) {
	f, err := s.validate(ctx, f)
	if err != nil {
		return Segments{}, err
	}
	q, err := query.SegmentQuery(f)
	if err != nil {
		return Segments{}, err
	}

	return cached(ctx, s, q.CacheKey(s.cachePrefix+":segments"), func(ctx context.Context) (Segments, error) {
		rows, err := s.storage.SegmentKPIs(ctx, q)
		if err != nil {
			return Segments{}, unavailable("segment kpis", err)
		}

		out := Segments{Segments: make([]SegmentPoint, 0, len(rows))}
		for _, r := range rows {
			out.Segments = append(out.Segments, SegmentPoint{Segment: r.Segment, Revenue: r.Revenue, Customers: r.Customers})
		}
		if len(out.Segments) == 0 {
			out.Empty = true
			out.Message = msgNoSegments
		}
		return out, nil
	})
}

// RiskValue returns customers above the churn and CLV thresholds ranked by
// churn_prob * clv. When no predictions exist the result says so instead of failing.
func (s *DashboardService) RiskValue(ctx context.Context, f query.FilterSelection) (RiskValue, error) {
	f, err := s.validate(ctx, f)
	if err != nil {
		return RiskValue{}, err
	}
	q, err := query.RiskQuery(f)
	if err != nil {
		return RiskValue{}, err
	}

	return cached(ctx, s, q.CacheKey(s.cachePrefix+":risk"), func(ctx context.Context) (RiskValue, error) {
		count, err := s.storage.PredictionCount(ctx)
		if err != nil {
			return RiskValue{}, unavailable("prediction count", err)
		}
		if count == 0 {
			return RiskValue{
				Customers: []RiskCustomer{},
				Top:       []RiskCustomer{},
				Empty:     true,
				Message:   msgNoPredictions,
			}, nil
		}

		rows, err := s.storage.RiskRows(ctx, q)
		if err != nil {
			return RiskValue{}, unavailable("risk rows", err)
		}

		out := RiskValue{PredictionsAvailable: true, Customers: make([]RiskCustomer, 0, len(rows))}
		for _, r := range rows {
			out.Customers = append(out.Customers, RiskCustomer{
				CustomerID:      r.CustomerID,
				Country:         r.Country.String,
				Segment:         r.Segment.String,
				MonetaryRevenue: r.MonetaryRevenue,
				ChurnProb:       r.ChurnProb,
				CLV:             r.CLV,
				PriorityScore:   r.PriorityScore,
			})
		}
		out.Top = out.Customers[:min(s.riskTopN, len(out.Customers))]
		if len(out.Customers) == 0 {
			out.Empty = true
			out.Message = msgNoRiskCustomers
		}
		return out, nil
	})
}

// Customers returns the drilldown list ordered by revenue.
func (s *DashboardService) Customers(ctx context.Context, f query.FilterSelection) (CustomerList, error) {
	f, err := s.validate(ctx, f)
	if err != nil {
		return CustomerList{}, err
	}
	q, err := query.CustomerQuery(f)
	if err != nil {
		return CustomerList{}, err
	}

	return cached(ctx, s, q.CacheKey(s.cachePrefix+":customers"), func(ctx context.Context) (CustomerList, error) {
		rows, err := s.storage.Customers(ctx, q)
		if err != nil {
			return CustomerList{}, unavailable("customers", err)
		}

		out := CustomerList{Customers: make([]Customer, 0, len(rows))}
		for _, r := range rows {
			out.Customers = append(out.Customers, toCustomer(r))
		}
		if len(out.Customers) == 0 {
			out.Empty = true
			out.Message = msgNoCustomers
		}
		return out, nil
	})
}

// Customer looks up one customer by id.
func (s *DashboardService) Customer(ctx context.Context, customerID string) (Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrInvalidFilter)
	}

	q := query.CustomerByIDQuery(customerID)
	return cached(ctx, s, q.CacheKey(s.cachePrefix+":customer"), func(ctx context.Context) (Customer, error) {
		row, err := s.storage.CustomerByID(ctx, customerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Customer{}, fmt.Errorf("%w: customer %q", ErrNotFound, customerID)
			}
			return Customer{}, unavailable("customer", err)
		}
		return toCustomer(row), nil
	})
}

func toCustomer(r models.CustomerRow) Customer {
	c := Customer{
		CustomerID:      r.CustomerID,
		Country:         r.Country.String,
		Segment:         r.Segment.String,
		RecencyDays:     r.RecencyDays.Float64,
		FrequencyOrders: r.FrequencyOrders.Float64,
		MonetaryRevenue: r.MonetaryRevenue.Float64,
		AvgOrderValue:   r.AvgOrderValue.Float64,
		FirstOrderDate:  r.FirstOrderDate.String(),
		LastOrderDate:   r.LastOrderDate.String(),
	}
	if r.ChurnProb.Valid {
		v := r.ChurnProb.Float64
		c.ChurnProb = &v
	}
	if r.CLV.Valid {
		v := r.CLV.Float64
		c.CLV = &v
	}
	return c
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
