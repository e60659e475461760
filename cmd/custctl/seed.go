package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/godilite/customer-intel/internal/repository"
	"github.com/godilite/customer-intel/internal/seed"
)

func newSeedCmd(flags *rootFlags) *cobra.Command {
	cfg := seed.DefaultConfig()
	var quiet bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace fact_orders with generated sample orders",
		Long: "seed generates an Online Retail style order history and loads it into fact_orders,\n" +
			"replacing whatever was there. The same --seed always produces the same data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := seed.Generate(cfg)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			var progress func(int)
			if !quiet {
				bar := progressbar.NewOptions(len(lines),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("loading orders"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				defer bar.Finish()
				progress = func(n int) { _ = bar.Add(n) }
			}

			n, err := repository.NewOrderRepository(rt.db).ReplaceOrders(cmd.Context(), lines, progress)
			if err != nil {
				return fmt.Errorf("load orders: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d order lines (%d invoices, up to %d customers)\n",
				n, cfg.Invoices, cfg.Customers)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Customers, "customers", cfg.Customers, "Number of distinct customer ids to draw from")
	f.IntVar(&cfg.Invoices, "invoices", cfg.Invoices, "Number of invoices to generate")
	f.IntVar(&cfg.SKUs, "skus", cfg.SKUs, "Number of distinct stock codes")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	f.BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}
