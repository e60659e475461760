package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	dbbuilder "github.com/godilite/customer-intel/pkg/database"
	"github.com/godilite/customer-intel/pkg/migrations"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the schema, views and predictions table",
	}

	withMigrator := func(fn func(cmd *cobra.Command, mg *migrations.Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			driver, _ := dbbuilder.ParseURL(rt.cfg.DatabaseURL)
			mg, err := migrations.New(rt.db, driver)
			if err != nil {
				return err
			}
			return fn(cmd, mg, args)
		}
	}

	report := func(cmd *cobra.Command, mg *migrations.Migrator, err error) error {
		if err != nil {
			return err
		}
		return printVersion(cmd, mg)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, _ []string) error {
			return report(cmd, mg, mg.Up())
		}),
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, _ []string) error {
			return report(cmd, mg, mg.Down())
		}),
	}

	steps := &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back when N is negative",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("steps: %q is not an integer", args[0])
			}
			return report(cmd, mg, mg.Steps(n))
		}),
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, _ []string) error {
			return printVersion(cmd, mg)
		}),
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, mg *migrations.Migrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("force: %q is not an integer", args[0])
			}
			return report(cmd, mg, mg.Force(v))
		}),
	}

	cmd.AddCommand(up, down, steps, version, force)
	return cmd
}

func printVersion(cmd *cobra.Command, mg *migrations.Migrator) error {
	v, dirty, err := mg.Version()
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if v == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "version: none")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d (dirty: %t)\n", v, dirty)
	return nil
}
