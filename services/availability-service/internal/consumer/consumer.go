package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// MessageReader is the subset of *kafka.Reader the consumer needs. Offsets are committed
// explicitly, never on fetch.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     MessageReader
	logger     *slog.Logger
	inbox      Inbox
	handler    Handler
	backoff    time.Duration
	maxBackoff time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewWithReader(logger, inbox, reader, handler)
}

func NewWithReader(logger *slog.Logger, inbox Inbox, reader MessageReader, handler Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      inbox,
		handler:    handler,
		backoff:    time.Second,
		maxBackoff: 30 * time.Second,
	}
}

// Run fetches messages in order and commits each one only after it has been applied or
// recognised as a duplicate. A failing message is retried in place with capped backoff, so
// later offsets on the partition wait behind it. If ctx ends first the offset stays
// uncommitted and the message is redelivered after restart.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !c.sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		if !c.processUntilDone(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			// The inbox absorbs the redelivery this may cause.
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// processUntilDone retries msg until it succeeds. It returns false only when ctx ends.
func (c *Consumer) processUntilDone(ctx context.Context, msg kafka.Message) bool {
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.process(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("event processing failed; retrying",
			"err", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"retry_in", delay.String(),
		)
		if !c.sleep(ctx, delay) {
			return false
		}
		delay = min(delay*2, c.maxBackoff)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	span.SetAttributes(attribute.String("messaging.message.id", meta.EventID))

	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox record failed")
		return fmt.Errorf("inbox record %s: %w", meta.EventID, err)
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler error")
		if ferr := c.inbox.Forget(ctxSpan, meta.EventID); ferr != nil {
			c.logger.Error("inbox release failed", "err", ferr, "event_id", meta.EventID)
		}
		return fmt.Errorf("handle %s: %w", meta.EventID, err)
	}
	return nil
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
