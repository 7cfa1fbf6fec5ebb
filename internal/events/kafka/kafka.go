// Package kafka moves transaction events over Kafka with segmentio/kafka-go.
// Messages are keyed by user id so one user's events stay ordered within a
// partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"kakeibo/internal/events"
	"kakeibo/internal/log"
)

const headerEventType = "event_type"

// maxAttempts bounds how often a failing event is retried before it is
// committed and skipped.
const maxAttempts = 5

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	logger *log.Logger
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Discard()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
		logger: logger.WithComponent(log.ComponentKafka),
	}
}

func message(e events.TransactionEvent) (kafka.Message, error) {
	body, err := events.Encode(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:     []byte(e.UserID),
		Value:   body,
		Time:    e.Timestamp,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(e.Type)}},
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, e events.TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := message(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	p.logger.DebugContext(ctx, "Published transaction event",
		log.FieldEventType, e.Type,
		log.FieldUserID, e.UserID,
		log.FieldYear, e.Year,
		log.FieldMonth, e.Month)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Consumer reads events as part of a consumer group. Offsets are committed
// only after the handler succeeded or the event was given up on.
type Consumer struct {
	reader     messageReader
	logger     *log.Logger
	retryDelay func(attempt int) time.Duration
}

var _ events.Consumer = (*Consumer)(nil)

func NewConsumer(brokers []string, topic, groupID string, logger *log.Logger) *Consumer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  time.Second,
		}),
		logger:     logger.WithComponent(log.ComponentKafka),
		retryDelay: events.Backoff,
	}
}

func (c *Consumer) Consume(ctx context.Context, h events.Handler) error {
	c.logger.InfoContext(ctx, "Started consuming transaction events")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		if err := c.process(ctx, msg, h); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit kafka message: %w", err)
		}
	}
}

// process returns an error only when ctx is cancelled; every other outcome
// ends with the message ready to commit.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, h events.Handler) error {
	e, err := events.Decode(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping malformed event",
			log.FieldError, err, "partition", msg.Partition, "offset", msg.Offset)
		return nil
	}

	for attempt := 0; ; attempt++ {
		err := h(ctx, e)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt+1 >= maxAttempts {
			c.logger.ErrorContext(ctx, "Giving up on event",
				log.FieldError, err,
				log.FieldEventType, e.Type,
				log.FieldUserID, e.UserID,
				"attempts", attempt+1)
			return nil
		}
		c.logger.WarnContext(ctx, "Failed to handle event, retrying",
			log.FieldError, err, "attempt", attempt+1)
		if err := events.Sleep(ctx, c.retryDelay(attempt)); err != nil {
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
