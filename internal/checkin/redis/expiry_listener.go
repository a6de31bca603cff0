package redis

import (
	"context"
	"fmt"
	"strings"
)

// Sweeper persists expiry for codes whose window has closed.
type Sweeper interface {
	SweepExpiredCodes(ctx context.Context) (int, error)
}

// ListenForExpiry sweeps expired codes whenever a reservation key expires.
// It blocks until ctx is done. Redis must have keyspace notifications for
// expired events enabled ("Ex"); a missing setting is reported, not fixed.
func (r *Redis) ListenForExpiry(ctx context.Context, sweeper Sweeper) {
	val, err := r.Client.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		r.Logger.Error("REDIS", fmt.Sprintf("Failed to get keyspace config: %v", err))
	} else if len(val) < 2 || !hasExpiryEvents(fmt.Sprint(val[1])) {
		r.Logger.Warn("REDIS", "Keyspace notifications not configured for expiry events, relying on sweeps and computed expiry")
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", r.Client.Options().DB)
	pubsub := r.Client.PSubscribe(ctx, channel)
	defer pubsub.Close()
	r.Logger.Info("REDIS", "Subscribed to "+channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("REDIS", "Expiry listener stopped")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			r.handleExpiredKey(ctx, msg.Payload, sweeper)
		}
	}
}

func (r *Redis) handleExpiredKey(ctx context.Context, key string, sweeper Sweeper) {
	code, ok := codeFromKey(key)
	if !ok {
		return
	}

	n, err := sweeper.SweepExpiredCodes(ctx)
	if err != nil {
		r.Logger.Error("CODE_EXPIRY", fmt.Sprintf("Sweep after reservation %s expired failed: %v", code, err))
		return
	}
	r.Logger.Info("CODE_EXPIRY", fmt.Sprintf("Reservation %s expired, %d code(s) marked expired", code, n))
}

// hasExpiryEvents checks for keyevent notifications (E) that include expired keys (x, or A for all).
func hasExpiryEvents(setting string) bool {
	return strings.Contains(setting, "E") && strings.ContainsAny(setting, "xA")
}
