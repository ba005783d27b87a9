// internal/infrastructure/cache/redis/cache.go
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	client *redis.Client
	prefix string
}

func NewCache(addr, password string, db int) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "giftsniper:",
	}
}

// Set устанавливает значение в Redis с TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	fullKey := c.prefix + key

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, fullKey, data, ttl).Err()
}

// Get получает значение из Redis
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := c.prefix + key

	data, err := c.client.Get(ctx, fullKey).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

// Delete удаляет ключ из Redis
func (c *Cache) Delete(ctx context.Context, key string) error {
	fullKey := c.prefix + key
	return c.client.Del(ctx, fullKey).Err()
}

// DeleteMulti удаляет несколько ключей из Redis
func (c *Cache) DeleteMulti(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.prefix + key
	}

	return c.client.Del(ctx, fullKeys...).Err()
}

// ScanKeys возвращает ключи по шаблону (без префикса в результате)
func (c *Cache) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	fullPattern := c.prefix + pattern

	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.client.Scan(ctx, cursor, fullPattern, 200).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, k[len(c.prefix):])
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// CheckRateLimit учитывает попытку и проверяет лимит в окне
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	fullKey := c.prefix + "ratelimit:" + key

	// Используем Redis pipeline для атомарности
	pipe := c.client.Pipeline()

	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	return count <= limit, count, nil
}
