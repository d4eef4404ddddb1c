package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink persists audit events
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// LogSink writes events to a zap logger
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, event Event) error {
	s.logger.Info("audit event",
		zap.String("action", string(event.Action)),
		zap.String("status", string(event.Status)),
		zap.String("user_id", event.UserID),
		zap.String("details", event.Details),
		zap.String("ip", event.IPAddress),
		zap.String("user_agent", event.UserAgent),
		zap.Any("metadata", event.Metadata),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}

// RedisStreamSink appends events to a capped Redis stream
type RedisStreamSink struct {
	client    *redis.Client
	stream    string
	maxLength int64
}

func NewRedisStreamSink(client *redis.Client, stream string, maxLength int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLength: maxLength}
}

func (s *RedisStreamSink) Write(ctx context.Context, event Event) error {
	values := map[string]any{
		"action":    string(event.Action),
		"status":    string(event.Status),
		"user_id":   event.UserID,
		"details":   event.Details,
		"ip":        event.IPAddress,
		"ua":        event.UserAgent,
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	if len(event.Metadata) > 0 {
		metadata, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		values["metadata"] = string(metadata)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLength > 0 {
		args.MaxLen = s.maxLength
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*RedisStreamSink)(nil)
)
