package main

import (
	"context"
	"fmt"
	"os"

	"gym-checkin/internal/config"
	"gym-checkin/internal/database"
	"gym-checkin/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "checkin-admin",
		Short:         "Operational tasks for the gym check-in service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(qrCmd())
	return rootCmd
}

// env bundles what the database-backed commands share.
type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *bun.DB
}

func openEnv(ctx context.Context) (*env, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("checkin-admin")

	bunDB, err := database.OpenPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: bunDB}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.log.Close()
}
