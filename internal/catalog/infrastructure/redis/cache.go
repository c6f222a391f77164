package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zishan044/ecommerce-app/internal/catalog/application"
	"github.com/zishan044/ecommerce-app/internal/catalog/domain"
)

type Cache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, baseTTL: ttl}
}

func (c *Cache) Get(ctx context.Context, id string) (domain.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, application.ErrCacheMiss
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("redis get: %w", err)
	}
	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal product: %w", err)
	}
	return p, nil
}

// Set stores p with the base TTL plus up to 20% jitter.
func (c *Cache) Set(ctx context.Context, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	ttl := c.baseTTL
	if j := int64(c.baseTTL / 5); j > 0 {
		ttl += time.Duration(rand.Int64N(j))
	}
	if err := c.client.Set(ctx, cacheKey(p.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func cacheKey(id string) string {
	return "product:" + id
}
