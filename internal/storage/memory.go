// internal/storage/memory.go
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"gift-market-sniper/internal/types"

	"github.com/google/uuid"
)

// MemoryEventStore - in-memory хранилище событий с дедупликацией.
// Используется в тестах и в standalone-режиме без Postgres.
// Индекс дедупликации ограничен capacity записей: самые старые
// идентичности вытесняются в порядке поступления, повтор старше
// глубины индекса может быть учтён заново.
type MemoryEventStore struct {
	mu       sync.RWMutex
	capacity int
	seen     map[string]bool
	seenFIFO []string
	byKey    map[string][]types.MarketEvent
	recent   []types.MarketEvent
}

// NewMemoryEventStore создает in-memory хранилище событий.
// capacity ограничивает индекс дедупликации; без аргумента или
// с нулём индекс не ограничен.
func NewMemoryEventStore(capacity ...int) *MemoryEventStore {
	limit := 0
	if len(capacity) > 0 {
		limit = capacity[0]
	}
	return &MemoryEventStore{
		capacity: limit,
		seen:     make(map[string]bool),
		byKey:    make(map[string][]types.MarketEvent),
	}
}

func (s *MemoryEventStore) Append(ctx context.Context, event types.MarketEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dedupKey := event.DedupKey()
	if s.seen[dedupKey] {
		return false, nil
	}
	s.seen[dedupKey] = true

	if s.capacity > 0 {
		s.seenFIFO = append(s.seenFIFO, dedupKey)
		if len(s.seenFIFO) > s.capacity {
			delete(s.seen, s.seenFIFO[0])
			s.seenFIFO = s.seenFIFO[1:]
		}
	}

	assetKey := event.AssetKey()
	s.byKey[assetKey] = append(s.byKey[assetKey], event)

	if event.EventType == types.EventListing || event.EventType == types.EventChangePrice {
		s.recent = append(s.recent, event)
	}
	return true, nil
}

func (s *MemoryEventStore) ByAssetKeySince(ctx context.Context, assetKey string, since time.Time) ([]types.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []types.MarketEvent
	for _, ev := range s.byKey[assetKey] {
		if ev.EventTime.After(since) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (s *MemoryEventStore) CountByTypeSince(ctx context.Context, assetKey string, eventType types.EventType, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ev := range s.byKey[assetKey] {
		if ev.EventType == eventType && ev.EventTime.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryEventStore) RecentMarketEvents(ctx context.Context, since time.Time, limit int) ([]types.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []types.MarketEvent
	for _, ev := range s.recent {
		if ev.EventTime.After(since) {
			result = append(result, ev)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EventTime.After(result[j].EventTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MemoryListingStore - in-memory хранилище актуальных лотов
type MemoryListingStore struct {
	mu       sync.RWMutex
	byGiftID map[string]types.ActiveListing
}

// NewMemoryListingStore создает in-memory хранилище лотов
func NewMemoryListingStore() *MemoryListingStore {
	return &MemoryListingStore{byGiftID: make(map[string]types.ActiveListing)}
}

// Upsert вставляет или обновляет лот по gift_id.
// При обновлении первоначальный listed_at сохраняется.
func (s *MemoryListingStore) Upsert(ctx context.Context, listing types.ActiveListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byGiftID[listing.GiftID]; ok && !existing.ListedAt.IsZero() {
		listing.ListedAt = existing.ListedAt
	}
	s.byGiftID[listing.GiftID] = listing
	return nil
}

func (s *MemoryListingStore) Remove(ctx context.Context, giftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byGiftID, giftID)
	return nil
}

func (s *MemoryListingStore) ByAssetKey(ctx context.Context, assetKey string) ([]types.ActiveListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []types.ActiveListing
	for _, l := range s.byGiftID {
		if l.AssetKey() == assetKey {
			result = append(result, l)
		}
	}
	return result, nil
}

func (s *MemoryListingStore) All(ctx context.Context) ([]types.ActiveListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.ActiveListing, 0, len(s.byGiftID))
	for _, l := range s.byGiftID {
		result = append(result, l)
	}
	return result, nil
}

func (s *MemoryListingStore) AssetKeys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]bool)
	for _, l := range s.byGiftID {
		keys[l.AssetKey()] = true
	}
	result := make([]string, 0, len(keys))
	for k := range keys {
		result = append(result, k)
	}
	sort.Strings(result)
	return result, nil
}

// MemoryAnalyticsCache - in-memory кэш аналитики.
// Put заменяет запись целиком, по указателю на неизменяемый снапшот.
type MemoryAnalyticsCache struct {
	mu    sync.RWMutex
	byKey map[string]*types.AssetAnalytics
}

// NewMemoryAnalyticsCache создает in-memory кэш аналитики
func NewMemoryAnalyticsCache() *MemoryAnalyticsCache {
	return &MemoryAnalyticsCache{byKey: make(map[string]*types.AssetAnalytics)}
}

func (c *MemoryAnalyticsCache) Get(ctx context.Context, assetKey string) (*types.AssetAnalytics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byKey[assetKey], nil
}

func (c *MemoryAnalyticsCache) Put(ctx context.Context, analytics *types.AssetAnalytics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[analytics.AssetKey] = analytics
	return nil
}

func (c *MemoryAnalyticsCache) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		result = append(result, k)
	}
	sort.Strings(result)
	return result, nil
}

// MemoryUserStore - in-memory хранилище пользователей
type MemoryUserStore struct {
	mu        sync.RWMutex
	settings  map[int64]types.UserSettings
	watchlist map[int64]map[string]float64
	muted     map[int64]map[string]time.Time
}

// NewMemoryUserStore создает in-memory хранилище пользователей
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		settings:  make(map[int64]types.UserSettings),
		watchlist: make(map[int64]map[string]float64),
		muted:     make(map[int64]map[string]time.Time),
	}
}

func (s *MemoryUserStore) ActiveUsers(ctx context.Context) ([]types.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []types.UserSettings
	for _, settings := range s.settings {
		if settings.Active {
			result = append(result, settings)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (s *MemoryUserStore) Settings(ctx context.Context, userID int64) (*types.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

func (s *MemoryUserStore) SaveSettings(ctx context.Context, settings types.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.UserID] = settings
	return nil
}

func (s *MemoryUserStore) WatchlistThreshold(ctx context.Context, userID int64, assetKey string) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if thresholds, ok := s.watchlist[userID]; ok {
		if threshold, ok := thresholds[assetKey]; ok {
			return &threshold, nil
		}
	}
	return nil, nil
}

func (s *MemoryUserStore) AddWatchlistEntry(ctx context.Context, entry types.WatchlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchlist[entry.UserID] == nil {
		s.watchlist[entry.UserID] = make(map[string]float64)
	}
	s.watchlist[entry.UserID][entry.AssetKey] = entry.ProfitThreshold
	return nil
}

func (s *MemoryUserStore) RemoveWatchlistEntry(ctx context.Context, userID int64, assetKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thresholds, ok := s.watchlist[userID]; ok {
		delete(thresholds, assetKey)
	}
	return nil
}

func (s *MemoryUserStore) MutedUntil(ctx context.Context, userID int64, assetKey string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutes, ok := s.muted[userID]
	if !ok {
		return nil, nil
	}
	until, ok := mutes[assetKey]
	if !ok {
		return nil, nil
	}
	// Ленивая чистка просроченных мьютов
	if !until.After(time.Now()) {
		delete(mutes, assetKey)
		return nil, nil
	}
	return &until, nil
}

func (s *MemoryUserStore) Mute(ctx context.Context, muted types.MutedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.muted[muted.UserID] == nil {
		s.muted[muted.UserID] = make(map[string]time.Time)
	}
	s.muted[muted.UserID][muted.AssetKey] = muted.MutedUntil
	return nil
}

func (s *MemoryUserStore) Unmute(ctx context.Context, userID int64, assetKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mutes, ok := s.muted[userID]; ok {
		delete(mutes, assetKey)
	}
	return nil
}

// MemorySentAlertStore - in-memory журнал алертов с атомарным
// check-then-append под блокировкой пары (user, asset)
type MemorySentAlertStore struct {
	mu     sync.Mutex
	latest map[int64]map[string]types.SentAlert
	all    []types.SentAlert
}

// NewMemorySentAlertStore создает in-memory журнал алертов
func NewMemorySentAlertStore() *MemorySentAlertStore {
	return &MemorySentAlertStore{latest: make(map[int64]map[string]types.SentAlert)}
}

func (s *MemorySentAlertStore) Latest(ctx context.Context, userID int64, assetKey string) (*types.SentAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alerts, ok := s.latest[userID]; ok {
		if alert, ok := alerts[assetKey]; ok {
			return &alert, nil
		}
	}
	return nil, nil
}

func (s *MemorySentAlertStore) AppendIfAllowed(ctx context.Context, alert types.SentAlert, window time.Duration, escalationMargin float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Перепроверка кулдауна внутри блокировки: две конкурентные
	// оценки не могут обе пройти в одном окне
	if alerts, ok := s.latest[alert.UserID]; ok {
		if prev, ok := alerts[alert.AssetKey]; ok {
			withinWindow := alert.SentAt.Sub(prev.SentAt) < window
			escalated := alert.ProfitPct >= prev.ProfitPct+escalationMargin
			if withinWindow && !escalated {
				return false, nil
			}
		}
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if s.latest[alert.UserID] == nil {
		s.latest[alert.UserID] = make(map[string]types.SentAlert)
	}
	s.latest[alert.UserID][alert.AssetKey] = alert
	s.all = append(s.all, alert)
	return true, nil
}

// MemoryRateLimiter - скользящий часовой лимит алертов на пользователя
type MemoryRateLimiter struct {
	mu      sync.Mutex
	perHour int
	window  time.Duration
	sent    map[int64][]time.Time
}

// NewMemoryRateLimiter создает in-memory рейт-лимитер
func NewMemoryRateLimiter(perHour int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		perHour: perHour,
		window:  time.Hour,
		sent:    make(map[int64][]time.Time),
	}
}

func (r *MemoryRateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	kept := r.sent[userID][:0]
	for _, t := range r.sent[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.perHour {
		r.sent[userID] = kept
		return false, nil
	}

	r.sent[userID] = append(kept, now)
	return true, nil
}
