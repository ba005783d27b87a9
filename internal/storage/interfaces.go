// internal/storage/interfaces.go
package storage

import (
	"context"
	"time"

	"gift-market-sniper/internal/types"
)

// EventStore - append-only хранилище рыночных событий.
// Дедупликация по идентичности (event_time, gift_id, event_type)
// выполняется на записи: повтор не вставляется.
type EventStore interface {
	// Append вставляет событие, если его ещё не было.
	// Возвращает false без ошибки для повтора.
	Append(ctx context.Context, event types.MarketEvent) (bool, error)

	// ByAssetKeySince возвращает события актива начиная с момента since
	ByAssetKeySince(ctx context.Context, assetKey string, since time.Time) ([]types.MarketEvent, error)

	// CountByTypeSince считает события актива данного типа с момента since
	CountByTypeSince(ctx context.Context, assetKey string, eventType types.EventType, since time.Time) (int, error)

	// RecentMarketEvents возвращает listing/change_price события
	// для фида сделок, новые первыми
	RecentMarketEvents(ctx context.Context, since time.Time, limit int) ([]types.MarketEvent, error)
}

// ListingStore - актуальные лоты, уникальные по gift_id
type ListingStore interface {
	Upsert(ctx context.Context, listing types.ActiveListing) error
	Remove(ctx context.Context, giftID string) error
	ByAssetKey(ctx context.Context, assetKey string) ([]types.ActiveListing, error)
	All(ctx context.Context) ([]types.ActiveListing, error)
	AssetKeys(ctx context.Context) ([]string, error)
}

// AnalyticsCache - кэш последней аналитики по ключу актива.
// Запись заменяется целиком: читатель никогда не видит смесь полей.
type AnalyticsCache interface {
	Get(ctx context.Context, assetKey string) (*types.AssetAnalytics, error)
	Put(ctx context.Context, analytics *types.AssetAnalytics) error
	Keys(ctx context.Context) ([]string, error)
}

// UserStore - настройки, вотчлисты и мьюты пользователей
type UserStore interface {
	ActiveUsers(ctx context.Context) ([]types.UserSettings, error)
	Settings(ctx context.Context, userID int64) (*types.UserSettings, error)
	SaveSettings(ctx context.Context, settings types.UserSettings) error

	// WatchlistThreshold возвращает персональный порог профита
	// для пары (user, asset), nil если записи нет
	WatchlistThreshold(ctx context.Context, userID int64, assetKey string) (*float64, error)
	AddWatchlistEntry(ctx context.Context, entry types.WatchlistEntry) error
	RemoveWatchlistEntry(ctx context.Context, userID int64, assetKey string) error

	// MutedUntil возвращает срок мьюта пары (user, asset), nil если
	// мьюта нет. Просроченные записи чистятся лениво.
	MutedUntil(ctx context.Context, userID int64, assetKey string) (*time.Time, error)
	Mute(ctx context.Context, muted types.MutedAsset) error
	Unmute(ctx context.Context, userID int64, assetKey string) error
}

// SentAlertStore - append-only журнал отправленных алертов,
// единственный источник истины для кулдауна
type SentAlertStore interface {
	// Latest возвращает последний алерт пары (user, asset), nil если не было
	Latest(ctx context.Context, userID int64, assetKey string) (*types.SentAlert, error)

	// AppendIfAllowed атомарно перепроверяет кулдаун и добавляет запись.
	// Возвращает false, когда внутри окна уже есть алерт и эскалация
	// не превышена - гонка двух конкурентных оценок решается в пользу
	// "не отправлять дважды".
	AppendIfAllowed(ctx context.Context, alert types.SentAlert, window time.Duration, escalationMargin float64) (bool, error)
}

// RateLimiter - часовой лимит алертов на пользователя
type RateLimiter interface {
	// Allow регистрирует попытку и сообщает, не превышен ли лимит
	Allow(ctx context.Context, userID int64) (bool, error)
}
