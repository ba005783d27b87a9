// internal/storage/memory_test.go
package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-sniper/internal/types"
)

func marketEvent(eventType types.EventType, giftID string, price float64, at time.Time) types.MarketEvent {
	return types.MarketEvent{
		EventTime: at,
		EventType: eventType,
		GiftID:    giftID,
		Model:     "Santa Hat",
		Backdrop:  "Navy",
		Price:     price,
	}
}

func TestEventStore_AppendDeduplicates(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()
	now := time.Now()

	ev := marketEvent(types.EventBuy, "g1", 10, now)

	inserted, err := store.Append(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Повтор той же идентичности не вставляется и не ошибается
	inserted, err = store.Append(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	events, err := store.ByAssetKeySince(ctx, "Santa Hat:Navy", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventStore_DistinctIdentitiesBothKept(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()
	now := time.Now()

	// Тот же подарок и время, но другой тип - другая идентичность
	first, err := store.Append(ctx, marketEvent(types.EventListing, "g1", 10, now))
	require.NoError(t, err)
	second, err := store.Append(ctx, marketEvent(types.EventChangePrice, "g1", 10, now))
	require.NoError(t, err)

	assert.True(t, first)
	assert.True(t, second)
}

func TestEventStore_ByAssetKeySinceFiltersWindow(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.Append(ctx, marketEvent(types.EventBuy, "g1", 10, now.Add(-2*time.Hour)))
	require.NoError(t, err)
	_, err = store.Append(ctx, marketEvent(types.EventBuy, "g2", 11, now.Add(-10*time.Minute)))
	require.NoError(t, err)

	events, err := store.ByAssetKeySince(ctx, "Santa Hat:Navy", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "g2", events[0].GiftID)
}

func TestEventStore_RecentMarketEvents(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.Append(ctx, marketEvent(types.EventListing, "g1", 10, now.Add(-30*time.Minute)))
	require.NoError(t, err)
	_, err = store.Append(ctx, marketEvent(types.EventChangePrice, "g2", 11, now.Add(-10*time.Minute)))
	require.NoError(t, err)
	// Покупки в фид не попадают
	_, err = store.Append(ctx, marketEvent(types.EventBuy, "g3", 12, now.Add(-5*time.Minute)))
	require.NoError(t, err)

	events, err := store.RecentMarketEvents(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Новые первыми
	assert.Equal(t, "g2", events[0].GiftID)
	assert.Equal(t, "g1", events[1].GiftID)
}

func TestListingStore_UpsertPreservesListedAt(t *testing.T) {
	store := NewMemoryListingStore()
	ctx := context.Background()
	listedAt := time.Now().Add(-time.Hour)

	require.NoError(t, store.Upsert(ctx, types.ActiveListing{
		GiftID:   "g1",
		Model:    "Santa Hat",
		Backdrop: "Navy",
		Price:    10,
		ListedAt: listedAt,
	}))

	// Смена цены не сбрасывает момент выставления лота
	require.NoError(t, store.Upsert(ctx, types.ActiveListing{
		GiftID:   "g1",
		Model:    "Santa Hat",
		Backdrop: "Navy",
		Price:    8,
		ListedAt: time.Now(),
	}))

	listings, err := store.ByAssetKey(ctx, "Santa Hat:Navy")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, 8.0, listings[0].Price)
	assert.WithinDuration(t, listedAt, listings[0].ListedAt, time.Second)
}

func TestListingStore_RemoveAndAssetKeys(t *testing.T) {
	store := NewMemoryListingStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Upsert(ctx, types.ActiveListing{GiftID: "g1", Model: "Santa Hat", Backdrop: "Navy", Price: 10, ListedAt: now}))
	require.NoError(t, store.Upsert(ctx, types.ActiveListing{GiftID: "g2", Model: "Plush Pepe", Price: 900, ListedAt: now}))

	keys, err := store.AssetKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Plush Pepe:no_bg", "Santa Hat:Navy"}, keys)

	require.NoError(t, store.Remove(ctx, "g1"))

	listings, err := store.ByAssetKey(ctx, "Santa Hat:Navy")
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestAnalyticsCache_PutReplacesWholeRecord(t *testing.T) {
	cache := NewMemoryAnalyticsCache()
	ctx := context.Background()
	now := time.Now()

	missing, err := cache.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := types.EmptyAnalytics("k", now)
	floor := 10.0
	first.Floor1st = &floor
	require.NoError(t, cache.Put(ctx, first))

	second := types.EmptyAnalytics("k", now.Add(time.Minute))
	require.NoError(t, cache.Put(ctx, second))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, got)
	// Старый флор не просачивается в новую запись
	assert.Nil(t, got.Floor1st)
}

func TestUserStore_MutedUntilLazyExpiry(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	require.NoError(t, store.Mute(ctx, types.MutedAsset{
		UserID:     1,
		AssetKey:   "k",
		MutedUntil: time.Now().Add(-time.Minute),
	}))

	until, err := store.MutedUntil(ctx, 1, "k")
	require.NoError(t, err)
	assert.Nil(t, until)

	require.NoError(t, store.Mute(ctx, types.MutedAsset{
		UserID:     1,
		AssetKey:   "k",
		MutedUntil: time.Now().Add(time.Hour),
	}))

	until, err = store.MutedUntil(ctx, 1, "k")
	require.NoError(t, err)
	require.NotNil(t, until)

	require.NoError(t, store.Unmute(ctx, 1, "k"))
	until, err = store.MutedUntil(ctx, 1, "k")
	require.NoError(t, err)
	assert.Nil(t, until)
}

func TestUserStore_Watchlist(t *testing.T) {
	store := NewMemoryUserStore()
	ctx := context.Background()

	threshold, err := store.WatchlistThreshold(ctx, 1, "k")
	require.NoError(t, err)
	assert.Nil(t, threshold)

	require.NoError(t, store.AddWatchlistEntry(ctx, types.WatchlistEntry{UserID: 1, AssetKey: "k", ProfitThreshold: 15}))

	threshold, err = store.WatchlistThreshold(ctx, 1, "k")
	require.NoError(t, err)
	require.NotNil(t, threshold)
	assert.Equal(t, 15.0, *threshold)

	require.NoError(t, store.RemoveWatchlistEntry(ctx, 1, "k"))
	threshold, err = store.WatchlistThreshold(ctx, 1, "k")
	require.NoError(t, err)
	assert.Nil(t, threshold)
}

func TestSentAlertStore_AppendIfAllowed(t *testing.T) {
	store := NewMemorySentAlertStore()
	ctx := context.Background()
	t0 := time.Now()
	window := 15 * time.Minute

	inserted, err := store.AppendIfAllowed(ctx, types.SentAlert{
		UserID: 1, AssetKey: "k", ProfitPct: 20, SentAt: t0,
	}, window, 10)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Внутри окна без эскалации - отказ
	inserted, err = store.AppendIfAllowed(ctx, types.SentAlert{
		UserID: 1, AssetKey: "k", ProfitPct: 25, SentAt: t0.Add(5 * time.Minute),
	}, window, 10)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Эскалация: профит превысил предыдущий на маржу
	inserted, err = store.AppendIfAllowed(ctx, types.SentAlert{
		UserID: 1, AssetKey: "k", ProfitPct: 30, SentAt: t0.Add(6 * time.Minute),
	}, window, 10)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Другая пара (user, asset) кулдауном не связана
	inserted, err = store.AppendIfAllowed(ctx, types.SentAlert{
		UserID: 2, AssetKey: "k", ProfitPct: 20, SentAt: t0.Add(time.Minute),
	}, window, 10)
	require.NoError(t, err)
	assert.True(t, inserted)

	// За пределами окна кулдаун не действует
	inserted, err = store.AppendIfAllowed(ctx, types.SentAlert{
		UserID: 1, AssetKey: "k", ProfitPct: 20, SentAt: t0.Add(window + 10*time.Minute),
	}, window, 10)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestSentAlertStore_ConcurrentAppendsOnlyOneWins(t *testing.T) {
	store := NewMemorySentAlertStore()
	ctx := context.Background()
	now := time.Now()

	const attempts = 16
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := store.AppendIfAllowed(ctx, types.SentAlert{
				UserID: 1, AssetKey: "k", ProfitPct: 20, SentAt: now,
			}, 15*time.Minute, 10)
			assert.NoError(t, err)
			results <- inserted
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for inserted := range results {
		if inserted {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestSentAlertStore_Latest(t *testing.T) {
	store := NewMemorySentAlertStore()
	ctx := context.Background()
	now := time.Now()

	latest, err := store.Latest(ctx, 1, "k")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = store.AppendIfAllowed(ctx, types.SentAlert{
		UserID: 1, AssetKey: "k", ProfitPct: 20, SentAt: now,
	}, 15*time.Minute, 10)
	require.NoError(t, err)

	latest, err = store.Latest(ctx, 1, "k")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 20.0, latest.ProfitPct)
	assert.NotEmpty(t, latest.ID)
}

func TestRateLimiter_CapsPerUser(t *testing.T) {
	limiter := NewMemoryRateLimiter(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Лимит считается на пользователя
	allowed, err = limiter.Allow(ctx, 2)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestEventStore_DedupIndexBounded(t *testing.T) {
	store := NewMemoryEventStore(2)
	ctx := context.Background()
	now := time.Now()

	first := marketEvent(types.EventBuy, "g1", 10, now.Add(-3*time.Minute))
	second := marketEvent(types.EventBuy, "g2", 10, now.Add(-2*time.Minute))
	third := marketEvent(types.EventBuy, "g3", 10, now.Add(-time.Minute))

	for _, ev := range []types.MarketEvent{first, second, third} {
		inserted, err := store.Append(ctx, ev)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	// Свежие идентичности ещё в индексе
	inserted, err := store.Append(ctx, third)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Самая старая вытеснена: повтор глубже индекса проходит заново
	inserted, err = store.Append(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
}
