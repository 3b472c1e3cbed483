package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisPublisher publishes domain events over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisPublisher connects to Redis at redisURL and verifies the connection.
func NewRedisPublisher(ctx context.Context, redisURL string, logger zerolog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisPublisher{client: client, logger: logger}, nil
}

// Publish marshals the event and publishes it on its channel.
func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, event.Channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.Debug().
		Str("channel", event.Channel).
		Str("event_id", event.ID).
		Msg("event published")

	return nil
}

// Ping checks the Redis connection. Used by the admin health endpoint.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
