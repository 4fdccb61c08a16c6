package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/wacommerce-backend/pkg/redis"
)

// KV is the slice of the redis wrapper the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CatalogKey(merchantID int64) string
}

// Cache keeps the last exported document per merchant for a fixed TTL.
type Cache struct {
	kv  KV
	ttl time.Duration
}

// NewCache builds a cache. A non-positive ttl defaults to six hours.
func NewCache(kv KV, ttl time.Duration) (*Cache, error) {
	if kv == nil {
		return nil, fmt.Errorf("catalog cache store required")
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Cache{kv: kv, ttl: ttl}, nil
}

// Get returns the cached document; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, merchantID int64) (doc Document, ok bool, err error) {
	raw, err := c.kv.Get(ctx, c.kv.CatalogKey(merchantID))
	if err != nil {
		if redis.IsMiss(err) {
			return Document{}, false, nil
		}
		return Document{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil || doc.URL == "" {
		// unreadable entries count as misses and get overwritten
		return Document{}, false, nil
	}
	return doc, true, nil
}

// Put stores doc for merchantID.
func (c *Cache) Put(ctx context.Context, merchantID int64, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, c.kv.CatalogKey(merchantID), string(payload), c.ttl)
}

// Invalidate drops the cached document.
func (c *Cache) Invalidate(ctx context.Context, merchantID int64) error {
	return c.kv.Del(ctx, c.kv.CatalogKey(merchantID))
}
