package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hanyong5/kiview/models"
	"github.com/redis/go-redis/v9"
)

// catalogCacheKey holds the serialized product list.
const catalogCacheKey = "products:all"

// CatalogCache is a read-through cache for the product list. The kiosk home
// screen fetches the catalog on every visit, so the list is kept in redis
// for a short TTL and invalidated by every product mutation. Without a redis
// client every call is a no-op and reads fall through to the database.
type CatalogCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var catalogCacheInstance *CatalogCache

// InitCatalogCache connects to redis and initializes the cache. An empty
// address disables caching entirely.
func InitCatalogCache(addr string, ttl time.Duration) *CatalogCache {
	var rdb *redis.Client
	if addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Catalog cache disabled, redis unreachable: %v", err)
			rdb = nil
		}
	}
	catalogCacheInstance = &CatalogCache{rdb: rdb, ttl: ttl}
	return catalogCacheInstance
}

// GetCatalogCache returns the cache instance
func GetCatalogCache() *CatalogCache {
	return catalogCacheInstance
}

// SetCatalogCache sets the cache instance (primarily for testing)
func SetCatalogCache(c *CatalogCache) {
	catalogCacheInstance = c
}

// Get loads the cached product list. The second return value reports a hit.
func (c *CatalogCache) Get(ctx context.Context) ([]models.Product, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	val, err := c.rdb.Get(ctx, catalogCacheKey).Result()
	if err != nil {
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(val), &products); err != nil {
		return nil, false
	}
	return products, true
}

// Set stores the product list for the configured TTL
func (c *CatalogCache) Set(ctx context.Context, products []models.Product) {
	if c == nil || c.rdb == nil {
		return
	}

	data, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, catalogCacheKey, data, c.ttl).Err(); err != nil {
		log.Printf("Failed to cache catalog: %v", err)
	}
}

// Invalidate drops the cached list. Called after every product mutation.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, catalogCacheKey).Err(); err != nil {
		log.Printf("Failed to invalidate catalog cache: %v", err)
	}
}
