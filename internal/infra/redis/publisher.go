package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/hostelcart/batch-engine/internal/pubsub"
	goredis "github.com/redis/go-redis/v9"
)

var _ pubsub.LivePublisher = (*RedisLivePublisher)(nil)

// RedisLivePublisher pushes serialized notifications onto Redis pub/sub
// channels for connected clients.
type RedisLivePublisher struct {
	client *goredis.Client
}

func NewRedisLivePublisher(client *goredis.Client) (*RedisLivePublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisLivePublisher{client: client}, nil
}

func (p *RedisLivePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("live publisher is not initialized")
	}
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("channel is required")
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %q: %w", channel, err)
	}
	return nil
}
