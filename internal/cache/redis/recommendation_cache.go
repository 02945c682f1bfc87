package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whaletrack/engine/internal/domain"
)

const (
	recommendationsKey = "recommendations:active"
	recommendationsTTL = 2 * time.Hour
)

// RecommendationCache implements domain.RecommendationCache using a single
// Redis key holding the JSON-encoded ranked list. The whole list is replaced
// in one SET, so readers always see a complete tick's output.
type RecommendationCache struct {
	rdb *redis.Client
}

// NewRecommendationCache creates a RecommendationCache backed by the given
// Client.
func NewRecommendationCache(c *Client) *RecommendationCache {
	return &RecommendationCache{rdb: c.Underlying()}
}

// SetAll replaces the cached ranked list.
func (rc *RecommendationCache) SetAll(ctx context.Context, recs []domain.Recommendation) error {
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("redis: marshal recommendations: %w", err)
	}
	if err := rc.rdb.Set(ctx, recommendationsKey, payload, recommendationsTTL).Err(); err != nil {
		return fmt.Errorf("redis: set recommendations: %w", err)
	}
	return nil
}

// GetAll returns the cached ranked list, or ErrNotFound when no tick has
// committed yet or the entry expired.
func (rc *RecommendationCache) GetAll(ctx context.Context) ([]domain.Recommendation, error) {
	payload, err := rc.rdb.Get(ctx, recommendationsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get recommendations: %w", err)
	}

	var recs []domain.Recommendation
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, fmt.Errorf("redis: unmarshal recommendations: %w", err)
	}
	return recs, nil
}

// Compile-time interface check.
var _ domain.RecommendationCache = (*RecommendationCache)(nil)
