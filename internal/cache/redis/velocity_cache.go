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
	velocityKey = "velocity:movers"
	velocityTTL = 2 * time.Hour
)

// VelocityCache implements domain.VelocityCache, holding the latest top-mover
// ranking as one JSON blob.
type VelocityCache struct {
	rdb *redis.Client
}

// NewVelocityCache creates a VelocityCache backed by the given Client.
func NewVelocityCache(c *Client) *VelocityCache {
	return &VelocityCache{rdb: c.Underlying()}
}

// SetAll replaces the cached mover ranking.
func (vc *VelocityCache) SetAll(ctx context.Context, entries []domain.VelocityEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: marshal velocity entries: %w", err)
	}
	if err := vc.rdb.Set(ctx, velocityKey, payload, velocityTTL).Err(); err != nil {
		return fmt.Errorf("redis: set velocity entries: %w", err)
	}
	return nil
}

// GetAll returns the cached mover ranking, or ErrNotFound when absent.
func (vc *VelocityCache) GetAll(ctx context.Context) ([]domain.VelocityEntry, error) {
	payload, err := vc.rdb.Get(ctx, velocityKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get velocity entries: %w", err)
	}

	var entries []domain.VelocityEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("redis: unmarshal velocity entries: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.VelocityCache = (*VelocityCache)(nil)
