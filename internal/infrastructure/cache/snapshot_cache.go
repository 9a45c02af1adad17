package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/config"
	"github.com/sawpanic/tierflow/internal/domain/market"
)

// SnapshotCache stores market snapshots in Redis keyed by timestamp, so
// repeated runs over the same window skip re-reading source files.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache connects to Redis using the cache configuration.
func NewSnapshotCache(cfg config.CacheConfig) *SnapshotCache {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	return &SnapshotCache{
		client: client,
		ttl:    time.Duration(cfg.TTLSec) * time.Second,
	}
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(ts time.Time) string {
	return fmt.Sprintf("tierflow:snapshot:%d", ts.UnixNano())
}

// Store writes one snapshot under its timestamp key.
func (c *SnapshotCache) Store(ctx context.Context, snap market.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(snap.Timestamp), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Load fetches the snapshot for a timestamp. Returns (snapshot, false, nil)
// on a cache miss.
func (c *SnapshotCache) Load(ctx context.Context, ts time.Time) (market.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, snapshotKey(ts)).Bytes()
	if err == redis.Nil {
		return market.Snapshot{}, false, nil
	}
	if err != nil {
		return market.Snapshot{}, false, fmt.Errorf("failed to read cached snapshot: %w", err)
	}
	var snap market.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return market.Snapshot{}, false, fmt.Errorf("failed to decode cached snapshot: %w", err)
	}
	return snap, true, nil
}

// StoreAll caches a batch, logging and continuing on individual failures.
func (c *SnapshotCache) StoreAll(ctx context.Context, snapshots []market.Snapshot) {
	for i := range snapshots {
		if err := c.Store(ctx, snapshots[i]); err != nil {
			log.Warn().Err(err).
				Time("timestamp", snapshots[i].Timestamp).
				Msg("Snapshot cache write failed")
		}
	}
}

// Ping verifies connectivity.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
