package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gym-checkin/internal/logger"

	"github.com/go-redis/redis/v8"
)

// KeyPrefix namespaces code reservations; expiry notifications are filtered on it.
const KeyPrefix = "checkin_code:"

type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	return &Redis{Client: client, Logger: log}
}

func reservationKey(code string) string {
	return KeyPrefix + code
}

// Reserve claims a code value for ttl. False means another code holds it.
func (r *Redis) Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	ok, err := r.Client.SetNX(ctx, reservationKey(code), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve code: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, code string) error {
	return r.Client.Del(ctx, reservationKey(code)).Err()
}

// IsReserved reports whether a reservation for the code is still live.
func (r *Redis) IsReserved(ctx context.Context, code string) (bool, error) {
	n, err := r.Client.Exists(ctx, reservationKey(code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func codeFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, KeyPrefix), true
}
