package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "leaderboard.period.finalized"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits one message per committed finalization, keyed by
// leaderboard id so consumers see a leaderboard's periods in order.
type KafkaPublisher struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewKafkaWriter builds a synchronous writer that waits for the leader ack.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: writer, logger: logger.With(slog.String("component", "kafka-publisher"))}
}

func (p *KafkaPublisher) PeriodFinalized(ctx context.Context, event models.PeriodFinalizedEvent) error {
	value, err := json.Marshal(event.Summary())
	if err != nil {
		return fmt.Errorf("marshal finalize event for period %s: %w", event.PeriodID, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.LeaderboardID),
		Value: value,
		Time:  event.FinalizedAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(models.EventPeriodFinalized)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish finalize event for period %s: %w", event.PeriodID, err)
	}
	p.logger.Debug("finalize event published",
		slog.String("period_id", event.PeriodID),
		slog.String("leaderboard_id", event.LeaderboardID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
