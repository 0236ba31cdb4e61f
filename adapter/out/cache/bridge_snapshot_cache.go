// Package cache holds Redis-backed adapters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"exchange_bridge/core/domain"
	"exchange_bridge/core/port/out"
)

const (
	snapshotKey = "exchange_bridge:calendar:snapshot"
	snapshotTTL = 24 * time.Hour
)

// SnapshotCache stores the latest fetch result in Redis so a restarted
// bridge serves events before its first poll completes.
type SnapshotCache struct {
	client *redis.Client
}

var _ out.SnapshotCachePort = (*SnapshotCache)(nil)

func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

type snapshotPayload struct {
	Events    []domain.Event `json:"events"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Store replaces the cached snapshot.
func (c *SnapshotCache) Store(ctx context.Context, events []domain.Event, fetchedAt time.Time) error {
	data, err := json.Marshal(snapshotPayload{Events: events, FetchedAt: fetchedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot; a cache miss returns nil events and
// a zero time without error.
func (c *SnapshotCache) Load(ctx context.Context) ([]domain.Event, time.Time, error) {
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return payload.Events, payload.FetchedAt, nil
}
