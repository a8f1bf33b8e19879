package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

const publishTimeout = 2 * time.Second

// RedisPublisher republishes events on a Redis pub/sub channel as JSON
// envelopes, for consumers outside the process.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a publisher writing to channel on addr.
func NewRedisPublisher(addr, channel string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		logger:  logger,
	}
}

type redisEnvelope struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Callback adapts the publisher to the fan-out contract. Publish failures are
// logged and dropped; the core's push path never depends on Redis liveness.
func (p *RedisPublisher) Callback(event string, payload any) {
	data, err := json.Marshal(redisEnvelope{Event: event, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		p.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn("failed to publish to redis", "event", event, "error", err)
	}
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
