package main

import (
	"fmt"
	"strconv"

	"gym-checkin/internal/database/migrations"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (default MIGRATIONS_DIR or ./migrations)")

	withRunner := func(cmd *cobra.Command, fn func(*migrations.Runner) error) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		opts := migrations.MigrateOptions{MigrationsDir: e.cfg.Database.MigrationsDir, AutoMigrate: true}
		if dir != "" {
			opts.MigrationsDir = dir
		}
		runner := migrations.NewRunner(e.db, opts, e.log)
		defer runner.Close()
		return fn(runner)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(r *migrations.Runner) error {
				if err := r.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(r *migrations.Runner) error {
				if err := r.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "to [version]",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withRunner(cmd, func(r *migrations.Runner) error {
				if err := r.MigrateTo(uint(version)); err != nil {
					return err
				}
				return printVersion(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(r *migrations.Runner) error {
				return printVersion(cmd, r)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, r *migrations.Runner) error {
	version, dirty, err := r.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
