package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/keepalive"

	"github.com/godilite/customer-intel/internal/config"
	handler "github.com/godilite/customer-intel/internal/grpc"
	"github.com/godilite/customer-intel/internal/httpapi"
	"github.com/godilite/customer-intel/internal/repository"
	"github.com/godilite/customer-intel/internal/service"
	"github.com/godilite/customer-intel/pkg/cache"
	dbbuilder "github.com/godilite/customer-intel/pkg/database"
	grpcsrv "github.com/godilite/customer-intel/pkg/grpc/server"
	"github.com/godilite/customer-intel/pkg/migrations"
)

const grpcIdleTimeout = 15 * time.Minute

type App struct {
	logger          *zap.Logger
	dbPool          *sql.DB
	cache           *cache.Cache
	grpcServer      *grpcsrv.Server
	httpServer      *http.Server
	httpListener    net.Listener
	shutdownTimeout time.Duration

	Dashboard *service.DashboardService
	Scoring   *service.ScoringService
}

// OpenDatabase opens the pool described by cfg.DatabaseURL and, when enabled,
// applies pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	driver, _ := dbbuilder.ParseURL(cfg.DatabaseURL)

	dbPool, err := dbbuilder.New(ctx,
		dbbuilder.WithURL(cfg.DatabaseURL),
		dbbuilder.WithMaxOpenConns(cfg.DBMaxOpenConns),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("driver", driver))

	if cfg.AutoMigrate {
		if err := migrations.Up(dbPool, driver); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		logger.Info("Database schema up to date")
	}
	return dbPool, nil
}

// ConnectCache returns nil when caching is disabled or redis cannot be reached;
// the dashboard then reads straight from the database.
func ConnectCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) *cache.Cache {
	if !cfg.CacheEnabled() {
		logger.Info("Cache disabled, neither REDIS_URL nor REDIS_ADDR is set")
		return nil
	}
	opts := []cache.Option{
		cache.WithAddress(cfg.RedisAddr),
		cache.WithPassword(cfg.RedisPassword),
		cache.WithDB(cfg.RedisDB),
	}
	if cfg.RedisURL != "" {
		opts = append(opts, cache.WithURL(cfg.RedisURL))
	}
	c, err := cache.New(ctx, opts...)
	if err != nil {
		logger.Warn("Cache unavailable, continuing without it", zap.Error(err))
		return nil
	}
	logger.Info("Cache client initialized", zap.String("addr", c.Addr()))
	return c
}

// NewServices wires the repositories and services over an open pool. c may be nil.
func NewServices(dbPool *sql.DB, c *cache.Cache, cfg *config.Config, logger *zap.Logger) (*service.DashboardService, *service.ScoringService) {
	dashOpts := []service.DashboardOption{service.WithRiskTopN(cfg.RiskTopN)}
	if c != nil {
		dashOpts = append(dashOpts, service.WithCache(c, cfg.CacheTTL))
	}
	dashboard := service.NewDashboardService(repository.NewCustomerRepository(dbPool), logger, dashOpts...)

	var scoringOpts []service.ScoringOption
	if c != nil {
		scoringOpts = append(scoringOpts, service.WithCacheInvalidation(c, dashboard.CachePrefix()))
	}
	scoring := service.NewScoringService(repository.NewPredictionRepository(dbPool), logger, scoringOpts...)

	return dashboard, scoring
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	dbPool, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	cacheClient := ConnectCache(ctx, cfg, logger)
	dashboard, scoring := NewServices(dbPool, cacheClient, cfg, logger)

	a := &App{
		logger:          logger,
		dbPool:          dbPool,
		cache:           cacheClient,
		shutdownTimeout: cfg.ShutdownTimeout,
		Dashboard:       dashboard,
		Scoring:         scoring,
	}

	grpcServer, err := grpcsrv.New(
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
		grpcsrv.WithKeepalive(keepalive.ServerParameters{MaxConnectionIdle: grpcIdleTimeout}),
	)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}
	grpcHandlers := handler.NewGRPCHandlers(dashboard, scoring, logger)
	grpcServer.Register(&handler.DashboardServiceDesc, grpcHandlers)
	a.grpcServer = grpcServer

	if cfg.HTTPEnabled() {
		if cfg.AppEnv == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("failed to listen on http port %d: %w", cfg.HTTPPort, err)
		}
		api := httpapi.NewHandler(dashboard, logger,
			httpapi.WithScoring(scoring),
			httpapi.WithHealthCheck(dbPool.PingContext),
		)
		a.httpListener = lis
		a.httpServer = &http.Server{
			Handler:           api,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Run starts the servers and blocks until ctx is done or a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application starting")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	grpcErr := a.grpcServer.Start()

	httpErr := make(chan error, 1)
	if a.httpServer != nil {
		a.logger.Info("HTTP server starting", zap.String("addr", a.httpListener.Addr().String()))
		go func() {
			if err := a.httpServer.Serve(a.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-httpErr:
		a.logger.Error("HTTP server failed", zap.Error(runErr))
	case runErr = <-grpcErr:
		if runErr != nil {
			a.logger.Error("gRPC server failed", zap.Error(runErr))
		}
	}

	a.logger.Info("application shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the servers, then closes the cache and the pool.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := a.grpcServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
	}
	errs = append(errs, a.closeStores())

	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown completed with errors", zap.Error(err))
		return err
	}
	a.logger.Info("graceful shutdown completed successfully")
	return nil
}

func (a *App) closeStores() error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	return errors.Join(errs...)
}
