package main

import (
	"fmt"

	"gym-checkin/internal/checkin"
	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/database"
	"gym-checkin/internal/notifier"
	"gym-checkin/internal/sse"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark codes past their expiry as expired and notify waiting clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			// Expiry events reach API instances through the Redis relay when it is up.
			var relay notifier.Relay
			redisClient, err := database.OpenRedis(ctx, e.cfg.Redis, e.log)
			if err != nil {
				e.log.Warn("REDIS", fmt.Sprintf("Redis unavailable, expiry events will not be relayed: %v", err))
			} else {
				defer redisClient.Close()
				relay = sse.NewRedisBridge(redisClient, nil, e.log)
			}
			n := notifier.NewNotifier(sse.NewStatusEventEmitter(), relay, 0, e.log)

			svc := checkin.NewCheckInService(&db.DB{Bun: e.db}, nil, n, nil, e.log, e.cfg.CheckIn.CodeTTL)
			count, err := svc.SweepExpiredCodes(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d codes\n", count)
			return nil
		},
	}
}
