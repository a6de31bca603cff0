package main

import (
	"fmt"

	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/kafka"
	"gym-checkin/internal/settlement"

	"github.com/spf13/cobra"
)

func settleCmd() *cobra.Command {
	var (
		limit       int
		retryFailed bool
	)

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Pay venues for pending check-ins",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			payouts, err := settlement.NewStripePayouts(e.cfg.Stripe.SecretKey, e.cfg.Stripe.Currency, e.log)
			if err != nil {
				return err
			}

			var events settlement.EventPublisher
			if e.cfg.Kafka.Enabled {
				producer := kafka.NewProducer(e.cfg.Kafka.Brokers, e.cfg.Kafka.Topics, e.log)
				defer producer.Close()
				events = producer
			}

			svc := settlement.NewSettlementService(&db.DB{Bun: e.db}, payouts, events, e.log)
			if limit <= 0 {
				limit = e.cfg.CheckIn.SettlementBatchSize
			}

			var summary settlement.Summary
			if retryFailed {
				summary, err = svc.RetryFailed(ctx, limit)
			} else {
				summary, err = svc.SettlePending(ctx, limit)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paid=%d failed=%d skipped=%d errors=%d\n",
				summary.Paid, summary.Failed, summary.Skipped, summary.Errors)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records to process (default SETTLEMENT_BATCH_SIZE)")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "reset failed records to pending before settling")
	return cmd
}
