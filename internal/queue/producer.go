package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryEvent records the outcome of one best-effort delivery.
type DeliveryEvent struct {
	ID          string
	RequestID   int64
	Channel     string // "text" or "voice"
	Destination string
	Outcome     string
	Error       string
	JobID       string
	RunID       string
	OccurredAt  time.Time
}

// Fields is the stream entry written for the event.
func (e DeliveryEvent) Fields() map[string]any {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	fields := map[string]any{
		"event_id":    e.ID,
		"channel":     e.Channel,
		"destination": e.Destination,
		"outcome":     e.Outcome,
		"occurred_at": occurred.UTC().Format(time.RFC3339Nano),
	}
	if e.RequestID != 0 {
		fields["request_id"] = strconv.FormatInt(e.RequestID, 10)
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	if e.JobID != "" {
		fields["job_id"] = e.JobID
	}
	if e.RunID != "" {
		fields["run_id"] = e.RunID
	}
	return fields
}

type Producer interface {
	Publish(ctx context.Context, event DeliveryEvent) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewRedisProducer appends delivery events to stream, trimming it to roughly
// maxLen entries when maxLen is positive.
func NewRedisProducer(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *redisProducer) Publish(ctx context.Context, event DeliveryEvent) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: event.Fields(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("publish delivery event: %w", err)
	}

	p.logger.DebugContext(ctx, "published delivery event",
		"stream_id", id,
		"event_id", event.ID,
		"channel", event.Channel,
		"outcome", event.Outcome)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

type logProducer struct {
	logger *slog.Logger
}

// NewLogProducer is used when no redis is configured; events only reach the log.
func NewLogProducer(logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logProducer{logger: logger}
}

func (p *logProducer) Publish(ctx context.Context, event DeliveryEvent) error {
	p.logger.InfoContext(ctx, "delivery event",
		"event_id", event.ID,
		"channel", event.Channel,
		"outcome", event.Outcome,
		"error", event.Error)
	return nil
}

func (p *logProducer) Close() error {
	return nil
}
