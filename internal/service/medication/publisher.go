package medication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/splax/carebase/internal/domain"
)

const defaultChannel = "carebase:notifications"

// redisPublisher is the subset of *redis.Client used for delivery.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher fans notifications out over Redis pub/sub.
type RedisPublisher struct {
	client  redisPublisher
	channel string
}

// NewRedisPublisher publishes JSON notifications on channel.
func NewRedisPublisher(client *redis.Client, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return newRedisPublisher(client, channel), nil
}

func newRedisPublisher(client redisPublisher, channel string) *RedisPublisher {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends n to subscribers of the channel.
func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// LogPublisher writes notifications to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a LogPublisher.
func NewLogPublisher(logger *slog.Logger) LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return LogPublisher{logger: logger}
}

// Publish logs n.
func (p LogPublisher) Publish(_ context.Context, n domain.Notification) error {
	p.logger.Info("notification", "kind", n.Kind, "user_id", n.UserID, "title", n.Title)
	return nil
}
