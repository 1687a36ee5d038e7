package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace-backend/models"
)

const productCacheTTL = 5 * time.Minute

// NewRedisClient initializes and returns a Redis client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// ProductCache is a read-through cache for public catalog reads. It is never
// consulted for order validation or settlement, which must read the
// authoritative rows.
type ProductCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewProductCache(client *redis.Client, log *zap.Logger) *ProductCache {
	return &ProductCache{client: client, log: log}
}

func (c *ProductCache) Get(ctx context.Context, productID string) (*models.Product, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, productKey(productID)).Bytes()
	if err != nil {
		return nil, false
	}
	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, false
	}
	return &product, true
}

func (c *ProductCache) Set(ctx context.Context, product *models.Product) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKey(product.ID.String()), raw, productCacheTTL).Err(); err != nil {
		c.log.Warn("Failed to cache product",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
	}
}

func productKey(productID string) string {
	return "product:" + productID
}
