// Package redis implements the profile cache on Redis. Snapshots are stored
// as JSON under the accountInfo keyspace with a fixed TTL.
package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jerome-fosse/tokens-api/internal/app/domain/profile"
	"github.com/jerome-fosse/tokens-api/internal/app/storage"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
)

const keyPrefix = "accountInfo:"

// Cache is a Redis-backed profile cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

var _ storage.ProfileCache = (*Cache)(nil)

// New creates a cache writing entries with the given TTL.
func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDefault("profile-cache")
	}
	return &Cache{client: client, ttl: ttl, log: log}
}

func (c *Cache) Get(ctx context.Context, accountID string) (profile.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+accountID).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return profile.Snapshot{}, false, nil
	}
	if err != nil {
		return profile.Snapshot{}, false, fmt.Errorf("cache get %s: %w", accountID, err)
	}

	var snap profile.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt entry behaves like a miss; the next fetch overwrites it.
		c.log.WithError(err).WithField("account_id", accountID).Warn("dropping undecodable cache entry")
		return profile.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (c *Cache) Put(ctx context.Context, snap profile.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", snap.AccountID, err)
	}
	if err := c.client.Set(ctx, keyPrefix+snap.AccountID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", snap.AccountID, err)
	}
	return nil
}
