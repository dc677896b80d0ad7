package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. It is the default backend.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, key string, value any) error {
	p.logger.InfoContext(ctx, "event published", slog.String("key", key), slog.Any("event", value))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
