package domain

import "context"

// RecommendationCache holds the latest fully-committed ranked list so API
// readers never observe a tick mid-write. The whole list is swapped in one
// operation after the tick commits.
type RecommendationCache interface {
	SetAll(ctx context.Context, recs []Recommendation) error
	GetAll(ctx context.Context) ([]Recommendation, error)
}

// PriceCache holds the most recent YES price per market, used when closing
// expired paper trades between ticks.
type PriceCache interface {
	SetPrices(ctx context.Context, prices map[string]float64) error
	GetPrice(ctx context.Context, marketID string) (float64, error)
}

// VelocityCache holds the latest velocity ranking (diagnostic top movers).
type VelocityCache interface {
	SetAll(ctx context.Context, entries []VelocityEntry) error
	GetAll(ctx context.Context) ([]VelocityEntry, error)
}

// SignalBus is a publish/subscribe fan-out used to push tick results to the
// WebSocket hub. Implementations must deliver each published message to every
// active subscription of that channel.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

// Subscription is a live subscription to one or more bus channels.
type Subscription interface {
	// Receive blocks until the next message or context cancellation.
	Receive(ctx context.Context) (channel string, payload []byte, err error)
	Close() error
}
