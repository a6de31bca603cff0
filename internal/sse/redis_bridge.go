package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"

	"github.com/go-redis/redis/v8"
)

const ChannelPrefix = "checkin_status:"

// RedisBridge relays status events between API instances over Redis pub/sub.
// Every instance runs Run, so an event published anywhere reaches local clients everywhere.
type RedisBridge struct {
	Client  *redis.Client
	Emitter *StatusEventEmitter
	Logger  *logger.Logger
}

func NewRedisBridge(client *redis.Client, emitter *StatusEventEmitter, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	return &RedisBridge{Client: client, Emitter: emitter, Logger: log}
}

func (b *RedisBridge) Publish(ctx context.Context, key string, event models.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.Client.Publish(ctx, ChannelPrefix+key, data).Err()
}

// Run subscribes and then delivers relayed events to the local emitter in the
// background until ctx is done. The subscription is live when Run returns.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.Client.PSubscribe(ctx, ChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe status channels: %w", err)
	}

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.deliver(msg.Channel, msg.Payload)
			}
		}
	}()

	b.Logger.Info("SSE", "Status bridge subscribed to "+ChannelPrefix+"*")
	return nil
}

func (b *RedisBridge) deliver(channel, payload string) {
	var event models.StatusEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.Logger.Warn("SSE", fmt.Sprintf("Dropping malformed status event on %s: %v", channel, err))
		return
	}
	b.Emitter.Emit(strings.TrimPrefix(channel, ChannelPrefix), event)
}
