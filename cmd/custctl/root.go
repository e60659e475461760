package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/godilite/customer-intel/internal/app"
	"github.com/godilite/customer-intel/internal/config"
)

type rootFlags struct {
	databaseURL string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "custctl",
		Short:         "Operate the customer intelligence store",
		Long:          "custctl seeds sample orders, applies migrations and runs the churn/CLV scoring job.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "Connection URL (overrides DATABASE_URL)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(newScoreCmd(flags), newSeedCmd(flags), newMigrateCmd(flags))
	return root
}

// runtime is what every subcommand needs: config, a logger and an open pool.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
}

func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
	_ = r.logger.Sync()
}

func openRuntime(ctx context.Context, flags *rootFlags, migrate bool) (*runtime, error) {
	if flags.databaseURL != "" {
		if err := os.Setenv("DATABASE_URL", flags.databaseURL); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	cfg.AutoMigrate = migrate

	logger, err := newCLILogger(cfg, flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	db, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, db: db}, nil
}

// newCLILogger keeps the console quiet unless --verbose is set; results go to stdout.
func newCLILogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if !verbose {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		zc.Encoding = "console"
		return zc.Build()
	}
	return config.NewLogger(cfg)
}
