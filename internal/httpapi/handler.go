package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/service"
)

type DashboardServicer interface {
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

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

type Handler struct {
	dashboard DashboardServicer
	scoring   ScoringRunner
	health    HealthFunc
	router    *gin.Engine
	log       *zap.Logger
}

type Option func(*Handler)

// WithScoring exposes POST /api/predictions/refresh.
func WithScoring(r ScoringRunner) Option {
	return func(h *Handler) { h.scoring = r }
}

func WithHealthCheck(fn HealthFunc) Option {
	return func(h *Handler) { h.health = fn }
}

func NewHandler(dashboard DashboardServicer, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		dashboard: dashboard,
		router:    gin.New(),
		log:       log.Named("http"),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.router.Use(gin.Recovery(), h.requestLogger())
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)

	api := h.router.Group("/api")
	api.GET("/filters", h.getFilters)
	api.GET("/overview", h.getOverview)
	api.GET("/segments", h.getSegments)
	api.GET("/risk", h.getRisk)
	api.GET("/customers", h.getCustomers)
	api.GET("/customers/:id", h.getCustomer)
	if h.scoring != nil {
		api.POST("/predictions/refresh", h.refreshPredictions)
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			h.log.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			h.log.Warn("request rejected", fields...)
		default:
			h.log.Debug("request served", fields...)
		}
	}
}

// healthCheck handles GET /health
func (h *Handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps service sentinels onto HTTP status codes.
func (h *Handler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidFilter):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, service.ErrDataUnavailable):
		h.log.Error("data unavailable", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "data_unavailable",
			Message: "customer data is unavailable, run the loader and scoring job",
		})
	default:
		h.log.Error("request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal error"})
	}
}

func (h *Handler) bindFilter(c *gin.Context) (query.FilterSelection, bool) {
	var req FilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return query.FilterSelection{}, false
	}
	f, err := req.Selection()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return query.FilterSelection{}, false
	}
	return f, true
}

func serveFiltered[T any](h *Handler, c *gin.Context, op string, fn func(context.Context, query.FilterSelection) (T, error)) {
	f, ok := h.bindFilter(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getFilters handles GET /api/filters
func (h *Handler) getFilters(c *gin.Context) {
	opts, err := h.dashboard.FilterOptions(c.Request.Context())
	if err != nil {
		h.writeError(c, "filters", err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

// getOverview handles GET /api/overview
func (h *Handler) getOverview(c *gin.Context) {
	serveFiltered(h, c, "overview", h.dashboard.Overview)
}

// getSegments handles GET /api/segments
func (h *Handler) getSegments(c *gin.Context) {
	serveFiltered(h, c, "segments", h.dashboard.Segments)
}

// getRisk handles GET /api/risk
func (h *Handler) getRisk(c *gin.Context) {
	serveFiltered(h, c, "risk", h.dashboard.RiskValue)
}

// getCustomers handles GET /api/customers
func (h *Handler) getCustomers(c *gin.Context) {
	serveFiltered(h, c, "customers", h.dashboard.Customers)
}

// getCustomer handles GET /api/customers/:id
func (h *Handler) getCustomer(c *gin.Context) {
	customer, err := h.dashboard.Customer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// refreshPredictions handles POST /api/predictions/refresh
func (h *Handler) refreshPredictions(c *gin.Context) {
	summary, err := h.scoring.Run(c.Request.Context())
	if err != nil {
		h.writeError(c, "refresh", err)
		return
	}
	h.log.Info("predictions refreshed",
		zap.String("run_id", summary.RunID),
		zap.Int64("inserted", summary.Inserted))
	c.JSON(http.StatusOK, summary)
}
