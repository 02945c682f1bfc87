package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whaletrack/engine/internal/domain"
)

const priceTTL = 2 * time.Hour

// PriceCache implements domain.PriceCache. Each market's latest YES price is
// stored at "price:{marketID}" and refreshed every poll tick; paper-trade
// settlement reads from here.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID string) string {
	return "price:" + marketID
}

// SetPrices stores the latest YES price for every market in one pipeline.
func (pc *PriceCache) SetPrices(ctx context.Context, prices map[string]float64) error {
	if len(prices) == 0 {
		return nil
	}

	pipe := pc.rdb.TxPipeline()
	for id, price := range prices {
		pipe.Set(ctx, priceKey(id), strconv.FormatFloat(price, 'f', -1, 64), priceTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices: %w", err)
	}
	return nil
}

// GetPrice returns a market's latest YES price, or ErrNotFound when the
// market has not been polled within the TTL.
func (pc *PriceCache) GetPrice(ctx context.Context, marketID string) (float64, error) {
	val, err := pc.rdb.Get(ctx, priceKey(marketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse price %s: %w", marketID, err)
	}
	return price, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
