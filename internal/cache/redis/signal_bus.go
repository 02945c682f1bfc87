package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/whaletrack/engine/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. Tick results
// published here fan out to every connected WebSocket hub, so multiple server
// processes can share one poller.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish JSON-encodes the payload and sends it to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: marshal publish payload for %s: %w", channel, err)
	}
	if err := sb.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a Pub/Sub subscription on the given channels.
func (sb *SignalBus) Subscribe(ctx context.Context, channels ...string) (domain.Subscription, error) {
	pubsub := sb.rdb.Subscribe(ctx, channels...)

	// Receive the confirmation so a broken connection fails here rather than
	// on the first read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %v: %w", channels, err)
	}

	return &subscription{pubsub: pubsub}, nil
}

type subscription struct {
	pubsub *redis.PubSub
}

func (s *subscription) Receive(ctx context.Context) (string, []byte, error) {
	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("redis: receive message: %w", err)
	}
	return msg.Channel, []byte(msg.Payload), nil
}

func (s *subscription) Close() error {
	return s.pubsub.Close()
}

// Compile-time interface checks.
var (
	_ domain.SignalBus    = (*SignalBus)(nil)
	_ domain.Subscription = (*subscription)(nil)
)
