package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/godilite/customer-intel/internal/app"
	"github.com/godilite/customer-intel/internal/query"
	"github.com/godilite/customer-intel/internal/repository"
	"github.com/godilite/customer-intel/internal/service"
)

func newScoreCmd(flags *rootFlags) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every customer and replace stored predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			c := app.ConnectCache(ctx, rt.cfg, rt.logger)
			if c != nil {
				defer c.Close()
			}
			_, scoring := app.NewServices(rt.db, c, rt.cfg, rt.logger)

			summary, err := scoring.Run(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)

			if top <= 0 {
				return nil
			}
			rows, err := repository.NewCustomerRepository(rt.db).RiskRows(ctx, query.TopAtRiskQuery(top))
			if err != nil {
				return fmt.Errorf("read top at risk: %w", err)
			}
			printTopAtRisk(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "Show this many top at-risk customers after scoring (0 to skip)")
	return cmd
}

func printSummary(w io.Writer, s service.RunSummary) {
	fmt.Fprintf(w, "run %s: scored %d customers, wrote %d predictions in %s\n",
		s.RunID, s.Customers, s.Inserted, s.Duration.Round(time.Millisecond))
	if s.Customers == 0 {
		return
	}
	fmt.Fprintf(w, "  avg churn %.4f\n", s.AvgChurn)
	fmt.Fprintf(w, "  clv avg %.2f  min %.2f  max %.2f\n", s.AvgCLV, s.MinCLV, s.MaxCLV)
}
