package service

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/godilite/customer-intel/internal/repository/models"
	"github.com/godilite/customer-intel/pkg/cache"
)

const (
	ChurnFloor = 0.05
	ChurnCeil  = 0.95
	CLVFloor   = 50.0

	recencyWeight   = 0.6
	frequencyWeight = 0.2
	monetaryWeight  = 0.2

	clvFrequencyFactor = 0.2
	clvRecencyDiscount = 0.3

	invalidateTimeout = 5 * time.Second
)

type rfm struct {
	id        string
	recency   float64
	frequency float64
	monetary  float64
}

// Score computes a churn probability and CLV for every aggregate. Normalization is
// relative to the batch maximum of each field, so scores depend on the whole batch.
// The result has one row per input, sorted by customer id.
func Score(aggs []models.CustomerAggregate) []models.CustomerPrediction {
	rows := make([]rfm, len(aggs))
	var maxR, maxF, maxM float64
	for i, a := range aggs {
		r := rfm{
			id:        strings.TrimSpace(a.CustomerID),
			recency:   orZero(a.RecencyDays),
			frequency: orZero(a.FrequencyOrders),
			monetary:  orZero(a.MonetaryRevenue),
		}
		maxR = max(maxR, r.recency)
		maxF = max(maxF, r.frequency)
		maxM = max(maxM, r.monetary)
		rows[i] = r
	}

	preds := make([]models.CustomerPrediction, len(rows))
	for i, r := range rows {
		recencyNorm := normalize(r.recency, maxR)
		frequencyNorm := normalize(r.frequency, maxF)
		monetaryNorm := normalize(r.monetary, maxM)

		churn := recencyNorm*recencyWeight - frequencyNorm*frequencyWeight - monetaryNorm*monetaryWeight
		churn = min(ChurnCeil, max(ChurnFloor, churn))

		clv := r.monetary * (1 + r.frequency*clvFrequencyFactor) * (1 - recencyNorm*clvRecencyDiscount)
		clv = max(CLVFloor, clv)

		preds[i] = models.CustomerPrediction{
			CustomerID: r.id,
			ChurnProb:  roundHalfEven(churn, 4),
			CLV:        roundHalfEven(clv, 2),
		}
	}

	slices.SortFunc(preds, func(a, b models.CustomerPrediction) int {
		return cmp.Or(
			cmp.Compare(a.CustomerID, b.CustomerID),
			cmp.Compare(a.ChurnProb, b.ChurnProb),
			cmp.Compare(a.CLV, b.CLV),
		)
	})
	return preds
}

func orZero(v sql.NullFloat64) float64 {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return 0
	}
	return v.Float64
}

// normalize divides by the batch maximum; a non-positive maximum yields 0.
func normalize(v, maxV float64) float64 {
	if maxV <= 0 {
		return 0
	}
	return v / maxV
}

func roundHalfEven(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.RoundToEven(v*p) / p
}

// ScoringService generates and persists customer predictions.
type ScoringService struct {
	storage     PredictionRepository
	cache       cache.Cacher
	cachePrefix string
	logger      *zap.Logger
}

type ScoringOption func(*ScoringService)

// WithCacheInvalidation drops every cached dashboard entry under prefix after a
// successful run.
func WithCacheInvalidation(c cache.Cacher, prefix string) ScoringOption {
	return func(s *ScoringService) {
		s.cache = c
		s.cachePrefix = prefix
	}
}

// NewScoringService creates a new ScoringService instance.
func NewScoringService(storage PredictionRepository, logger *zap.Logger, opts ...ScoringOption) *ScoringService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	s := &ScoringService{
		storage: storage,
		logger:  logger.Named("scoring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads every customer aggregate, scores the batch and atomically replaces the
// stored predictions.
func (s *ScoringService) Run(ctx context.Context) (RunSummary, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	aggs, err := s.storage.GetCustomerAggregates(ctx)
	if err != nil {
		logger.Error("failed to read customer aggregates", zap.Error(err))
		return RunSummary{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	logger.Info("fetched customer aggregates", zap.Int("customers", len(aggs)))

	preds := Score(aggs)

	inserted, err := s.storage.ReplacePredictions(ctx, preds)
	if err != nil {
		logger.Error("failed to replace predictions", zap.Int("predictions", len(preds)), zap.Error(err))
		return RunSummary{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	summary := summarize(runID, preds)
	summary.Inserted = inserted
	summary.Duration = time.Since(started)

	s.invalidate(ctx, logger)

	logger.Info("predictions replaced",
		zap.Int("customers", summary.Customers),
		zap.Int64("inserted", summary.Inserted),
		zap.Float64("avg_churn", summary.AvgChurn),
		zap.Float64("avg_clv", summary.AvgCLV),
		zap.Float64("min_clv", summary.MinCLV),
		zap.Float64("max_clv", summary.MaxCLV),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

func (s *ScoringService) invalidate(ctx context.Context, logger *zap.Logger) {
	if s.cache == nil || s.cachePrefix == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	removed, err := s.cache.InvalidatePrefix(ctx, s.cachePrefix)
	if err != nil {
		logger.Warn("cache invalidation failed", zap.String("prefix", s.cachePrefix), zap.Error(err))
		return
	}
	logger.Debug("cache invalidated", zap.String("prefix", s.cachePrefix), zap.Int64("keys", removed))
}

func summarize(runID string, preds []models.CustomerPrediction) RunSummary {
	summary := RunSummary{RunID: runID, Customers: len(preds)}
	if len(preds) == 0 {
		return summary
	}

	var churnSum, clvSum float64
	summary.MinCLV = math.Inf(1)
	summary.MaxCLV = math.Inf(-1)
	for _, p := range preds {
		churnSum += p.ChurnProb
		clvSum += p.CLV
		summary.MinCLV = min(summary.MinCLV, p.CLV)
		summary.MaxCLV = max(summary.MaxCLV, p.CLV)
	}
	n := float64(len(preds))
	summary.AvgChurn = churnSum / n
	summary.AvgCLV = clvSum / n
	return summary
}
