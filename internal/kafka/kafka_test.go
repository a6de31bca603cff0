package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gym-checkin/internal/config"
	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

var topics = config.TopicConfig{
	CodeGenerated:     "gym.checkin.code_generated",
	CheckInRegistered: "gym.checkin.registered",
	CheckInSettled:    "gym.checkin.settled",
}

func TestProducerRoutesEventsToTopics(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: topics, Logger: logger.NewWithWriters(nil, nil)}
	ctx := context.Background()

	require.NoError(t, p.PublishCodeGenerated(ctx, models.CodeGeneratedEvent{CodeID: "c1"}))
	require.NoError(t, p.PublishCheckInRegistered(ctx, models.CheckInRegisteredEvent{CheckInID: "r1", TransferAmount: decimal.RequireFromString("5.00")}))
	require.NoError(t, p.PublishCheckInSettled(ctx, models.CheckInSettledEvent{CheckInID: "r1", PaymentStatus: models.PaymentStatusPaid}))

	require.Len(t, w.messages, 3)
	assert.Equal(t, "gym.checkin.code_generated", w.messages[0].Topic)
	assert.Equal(t, "c1", string(w.messages[0].Key))
	assert.Equal(t, "gym.checkin.registered", w.messages[1].Topic)
	assert.Equal(t, "r1", string(w.messages[1].Key))
	assert.Equal(t, "gym.checkin.settled", w.messages[2].Topic)

	var decoded models.CheckInRegisteredEvent
	require.NoError(t, json.Unmarshal(w.messages[1].Value, &decoded))
	assert.True(t, decoded.TransferAmount.Equal(decimal.RequireFromString("5")))
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, topics, nil)
	p.Writer = &fakeWriter{err: errors.New("leader not available")}

	err := p.PublishCodeGenerated(context.Background(), models.CodeGeneratedEvent{CodeID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gym.checkin.code_generated")
}

type fakeReader struct {
	messages  []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerHandsEventsToHandler(t *testing.T) {
	good, err := json.Marshal(models.CheckInRegisteredEvent{CheckInID: "r1", FinancialRecordID: "f1"})
	require.NoError(t, err)
	failing, err := json.Marshal(models.CheckInRegisteredEvent{CheckInID: "r2"})
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("{broken")},
		{Offset: 3, Value: failing},
	}}
	c := &Consumer{Reader: reader, Logger: logger.NewWithWriters(nil, nil)}

	var seen []string
	err = c.ConsumeCheckIns(context.Background(), func(_ context.Context, e models.CheckInRegisteredEvent) error {
		seen = append(seen, e.CheckInID)
		if e.CheckInID == "r2" {
			return errors.New("stripe down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, seen)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}
