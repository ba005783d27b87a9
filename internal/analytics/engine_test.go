// internal/analytics/engine_test.go
package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-sniper/internal/types"
)

func listing(giftID string, price float64, listedAt time.Time) types.ActiveListing {
	return types.ActiveListing{
		GiftID:   giftID,
		Model:    "Santa Hat",
		Backdrop: "Navy",
		Price:    price,
		ListedAt: listedAt,
	}
}

func buyEvent(giftID string, price float64, at time.Time) types.MarketEvent {
	return types.MarketEvent{
		EventTime: at,
		EventType: types.EventBuy,
		GiftID:    giftID,
		Model:     "Santa Hat",
		Backdrop:  "Navy",
		Price:     price,
		Source:    types.SourceSwiftGifts,
	}
}

func TestRecompute_DistinctPriceFloors(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	listings := []types.ActiveListing{
		listing("g1", 10, now.Add(-3*time.Hour)),
		listing("g2", 10, now.Add(-1*time.Hour)),
		listing("g3", 12, now.Add(-2*time.Hour)),
		listing("g4", 15, now.Add(-4*time.Hour)),
	}

	a := engine.Recompute("Santa Hat:Navy", now, listings, nil)

	require.NotNil(t, a.Floor1st)
	require.NotNil(t, a.Floor2nd)
	require.NotNil(t, a.Floor3rd)
	assert.Equal(t, 10.0, *a.Floor1st)
	assert.Equal(t, 12.0, *a.Floor2nd)
	assert.Equal(t, 15.0, *a.Floor3rd)
	assert.Equal(t, 4, a.ListingsCount)
}

func TestRecompute_TwoDistinctPrices(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	listings := []types.ActiveListing{
		listing("g1", 8, now.Add(-time.Hour)),
		listing("g2", 8, now.Add(-time.Hour)),
		listing("g3", 9, now.Add(-time.Hour)),
	}

	a := engine.Recompute("Santa Hat:Navy", now, listings, nil)

	require.NotNil(t, a.Floor2nd)
	assert.Equal(t, 9.0, *a.Floor2nd)
	assert.Nil(t, a.Floor3rd)
}

func TestRecompute_EmptyInputs(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	a := engine.Recompute("Unknown Model:no_bg", now, nil, nil)

	assert.Nil(t, a.Floor1st)
	assert.Nil(t, a.PriceQ50)
	assert.Nil(t, a.LastSaleAt)
	assert.Equal(t, 0, a.Sales7d)
	assert.Equal(t, 0.0, a.LiquidityScore)
	assert.Equal(t, types.ConfidenceLow, a.ConfidenceLevel)
	assert.Equal(t, types.TrendStable, a.Trend)
}

func TestRecompute_ReplayIsIdempotent(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	sale := buyEvent("g1", 20, now.Add(-time.Hour))
	once := engine.Recompute("Santa Hat:Navy", now, nil, []types.MarketEvent{sale})
	twice := engine.Recompute("Santa Hat:Navy", now, nil, []types.MarketEvent{sale, sale, sale})

	assert.Equal(t, once.Sales7d, twice.Sales7d)
	assert.Equal(t, once.Sales30d, twice.Sales30d)
	assert.Equal(t, once.LiquidityScore, twice.LiquidityScore)
	assert.Equal(t, 1, twice.Sales7d)
}

func TestRecompute_FutureEventsIgnored(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	events := []types.MarketEvent{
		buyEvent("g1", 20, now.Add(-time.Hour)),
		buyEvent("g2", 25, now.Add(time.Hour)),
	}

	a := engine.Recompute("Santa Hat:Navy", now, nil, events)

	assert.Equal(t, 1, a.Sales7d)
	assert.Equal(t, 1, a.Sales30d)
}

func TestRecompute_SalesWindows(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	events := []types.MarketEvent{
		buyEvent("g1", 20, now.Add(-2*24*time.Hour)),
		buyEvent("g2", 22, now.Add(-10*24*time.Hour)),
		buyEvent("g3", 24, now.Add(-40*24*time.Hour)),
	}

	a := engine.Recompute("Santa Hat:Navy", now, nil, events)

	assert.Equal(t, 1, a.Sales7d)
	assert.Equal(t, 2, a.Sales30d)
	require.NotNil(t, a.LastSaleAt)
	assert.WithinDuration(t, now.Add(-2*24*time.Hour), *a.LastSaleAt, time.Second)
}

func TestLiquidityScore_Monotonic(t *testing.T) {
	prev := -1.0
	for sales := 0; sales <= 40; sales++ {
		score := liquidityScore(sales, 5)
		assert.GreaterOrEqual(t, score, prev, "sales=%d", sales)
		assert.LessOrEqual(t, score, 10.0)
		prev = score
	}

	prev = -1.0
	for listings := 0; listings <= 40; listings++ {
		score := liquidityScore(5, listings)
		assert.GreaterOrEqual(t, score, prev, "listings=%d", listings)
		prev = score
	}
}

func TestConfidenceLevels(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	makeSales := func(count7d int, lastAge time.Duration) []types.MarketEvent {
		var events []types.MarketEvent
		for i := 0; i < count7d; i++ {
			at := now.Add(-lastAge - time.Duration(i)*time.Hour)
			events = append(events, buyEvent("g", 20, at))
		}
		return events
	}

	// 5 продаж за 7д, последняя свежее 24ч
	a := engine.Recompute("k", now, nil, makeSales(5, time.Hour))
	assert.Equal(t, types.ConfidenceVeryHigh, a.ConfidenceLevel)

	// 5 продаж, но последняя старше 24ч
	a = engine.Recompute("k", now, nil, makeSales(5, 30*time.Hour))
	assert.Equal(t, types.ConfidenceHigh, a.ConfidenceLevel)

	// 3 продажи за 7д
	a = engine.Recompute("k", now, nil, makeSales(3, 48*time.Hour))
	assert.Equal(t, types.ConfidenceHigh, a.ConfidenceLevel)

	// Продажа только в длинном окне
	a = engine.Recompute("k", now, nil, []types.MarketEvent{
		buyEvent("g", 20, now.Add(-20*24*time.Hour)),
	})
	assert.Equal(t, types.ConfidenceMedium, a.ConfidenceLevel)

	// Ни одной продажи
	a = engine.Recompute("k", now, nil, nil)
	assert.Equal(t, types.ConfidenceLow, a.ConfidenceLevel)
}

func TestTrend(t *testing.T) {
	engine := NewEngine(DefaultPolicy)
	now := time.Now()

	window := func(prices []float64, old bool) []types.MarketEvent {
		var events []types.MarketEvent
		for i, p := range prices {
			at := now.Add(-time.Duration(i+1) * time.Hour)
			if old {
				at = at.Add(-8 * 24 * time.Hour)
			}
			events = append(events, buyEvent("g", p, at))
		}
		return events
	}

	// Медиана выросла с 10 до 12 (+20%)
	events := append(window([]float64{12, 12, 12}, false), window([]float64{10, 10, 10}, true)...)
	assert.Equal(t, types.TrendRising, engine.Recompute("k", now, nil, events).Trend)

	// Медиана упала с 10 до 8 (-20%)
	events = append(window([]float64{8, 8, 8}, false), window([]float64{10, 10, 10}, true)...)
	assert.Equal(t, types.TrendFalling, engine.Recompute("k", now, nil, events).Trend)

	// Изменение в пределах порога
	events = append(window([]float64{10.2, 10.2}, false), window([]float64{10, 10}, true)...)
	assert.Equal(t, types.TrendStable, engine.Recompute("k", now, nil, events).Trend)

	// Нет предыдущего окна - тренда нет
	events = window([]float64{12, 12}, false)
	assert.Equal(t, types.TrendStable, engine.Recompute("k", now, nil, events).Trend)
}

func TestQuantile(t *testing.T) {
	_, ok := quantile(nil, 0.5)
	assert.False(t, ok)

	q, ok := quantile([]float64{7}, 0.5)
	require.True(t, ok)
	assert.Equal(t, 7.0, q)

	q, ok = quantile([]float64{15, 10, 12}, 0.5)
	require.True(t, ok)
	assert.Equal(t, 12.0, q)

	// Линейная интерполяция между 10 и 20
	q, ok = quantile([]float64{10, 20}, 0.5)
	require.True(t, ok)
	assert.Equal(t, 15.0, q)

	q, ok = quantile([]float64{10, 20, 30, 40}, 0.25)
	require.True(t, ok)
	assert.InDelta(t, 17.5, q, 1e-9)
}

func TestAdaptiveReferencePrice(t *testing.T) {
	assert.Nil(t, AdaptiveReferencePrice(nil))
	assert.Nil(t, AdaptiveReferencePrice(&types.AssetAnalytics{}))

	f2 := 12.0
	q50 := 10.0
	a := &types.AssetAnalytics{
		Floor2nd:       &f2,
		PriceQ50:       &q50,
		LiquidityScore: 6,
		Trend:          types.TrendStable,
	}

	// Высокая ликвидность: вес флора 0.4
	arp := AdaptiveReferencePrice(a)
	require.NotNil(t, arp)
	assert.InDelta(t, 12*0.4+10*0.6, *arp, 0.01)

	// Падающий рынок снижает ARP
	a.Trend = types.TrendFalling
	falling := AdaptiveReferencePrice(a)
	require.NotNil(t, falling)
	assert.Less(t, *falling, *arp)
}
