package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gym-checkin/internal/config"
	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes one JSON-encoded message keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISHED", topic, key)
	return nil
}

func (p *Producer) PublishCodeGenerated(ctx context.Context, event models.CodeGeneratedEvent) error {
	return p.Publish(ctx, p.Topics.CodeGenerated, event.CodeID, event)
}

func (p *Producer) PublishCheckInRegistered(ctx context.Context, event models.CheckInRegisteredEvent) error {
	return p.Publish(ctx, p.Topics.CheckInRegistered, event.CheckInID, event)
}

func (p *Producer) PublishCheckInSettled(ctx context.Context, event models.CheckInSettledEvent) error {
	return p.Publish(ctx, p.Topics.CheckInSettled, event.CheckInID, event)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
