package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	return &Consumer{Reader: reader, Logger: log}
}

// ConsumeCheckIns hands every registered check-in to handler until ctx ends.
// A failing handler does not stall the partition: the error is logged and the
// offset still advances, so handlers must leave their own retry state behind.
func (c *Consumer) ConsumeCheckIns(ctx context.Context, handler func(context.Context, models.CheckInRegisteredEvent) error) error {
	c.Logger.Info("KAFKA", "Check-in consumer started")

	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.Logger.Info("KAFKA", "Check-in consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var event models.CheckInRegisteredEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Skipping undecodable message at offset %d: %v", msg.Offset, err))
			if err := c.Reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("commit message: %w", err)
			}
			continue
		}

		c.Logger.LogKafka("RECEIVED", msg.Topic, event.CheckInID)
		if err := handler(ctx, event); err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("Handler failed for check-in %s: %v", event.CheckInID, err))
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
