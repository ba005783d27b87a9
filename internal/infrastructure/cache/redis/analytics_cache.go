// internal/infrastructure/cache/redis/analytics_cache.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gift-market-sniper/internal/types"

	"github.com/go-redis/redis/v8"
)

// AnalyticsCache - Redis-реализация кэша аналитики.
// Запись хранится как JSON целиком под ключом analytics:{asset_key},
// поэтому подмена атомарна: читатель видит либо старый снимок,
// либо новый, никогда их смесь.
type AnalyticsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewAnalyticsCache создает кэш аналитики поверх Cache
func NewAnalyticsCache(cache *Cache, ttl time.Duration) *AnalyticsCache {
	return &AnalyticsCache{
		cache: cache,
		ttl:   ttl,
	}
}

func analyticsKey(assetKey string) string {
	return fmt.Sprintf("analytics:%s", assetKey)
}

// Get возвращает снимок аналитики, nil без ошибки если ключа нет
func (ac *AnalyticsCache) Get(ctx context.Context, assetKey string) (*types.AssetAnalytics, error) {
	var analytics types.AssetAnalytics
	err := ac.cache.Get(ctx, analyticsKey(assetKey), &analytics)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics for %s: %w", assetKey, err)
	}
	return &analytics, nil
}

// Put заменяет снимок аналитики целиком
func (ac *AnalyticsCache) Put(ctx context.Context, analytics *types.AssetAnalytics) error {
	if analytics == nil {
		return fmt.Errorf("analytics must not be nil")
	}
	if err := ac.cache.Set(ctx, analyticsKey(analytics.AssetKey), analytics, ac.ttl); err != nil {
		return fmt.Errorf("failed to put analytics for %s: %w", analytics.AssetKey, err)
	}
	return nil
}

// Keys возвращает все ключи активов с живой аналитикой
func (ac *AnalyticsCache) Keys(ctx context.Context) ([]string, error) {
	raw, err := ac.cache.ScanKeys(ctx, "analytics:*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan analytics keys: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len("analytics:"):])
	}
	return keys, nil
}
