// internal/analytics/engine.go
package analytics

import (
	"math"
	"sort"
	"time"

	"gift-market-sniper/internal/types"
)

// Policy - настраиваемые параметры расчёта аналитики
type Policy struct {
	ConfidenceSalesN  int           // N продаж за короткое окно для very_high
	TrendThresholdPct float64       // порог rising/falling по q50, в процентах
	ShortWindow       time.Duration // окно sales_7d
	LongWindow        time.Duration // окно sales_30d
}

// DefaultPolicy - параметры по умолчанию
var DefaultPolicy = Policy{
	ConfidenceSalesN:  5,
	TrendThresholdPct: 5.0,
	ShortWindow:       7 * 24 * time.Hour,
	LongWindow:        30 * 24 * time.Hour,
}

// Engine пересчитывает аналитику актива по текущим лотам и
// недавним событиям. Чистая функция от своих входов: никакого
// скрытого состояния, результат детерминирован.
type Engine struct {
	policy Policy
}

// NewEngine создает движок аналитики
func NewEngine(policy Policy) *Engine {
	if policy.ConfidenceSalesN <= 0 {
		policy.ConfidenceSalesN = DefaultPolicy.ConfidenceSalesN
	}
	if policy.TrendThresholdPct <= 0 {
		policy.TrendThresholdPct = DefaultPolicy.TrendThresholdPct
	}
	if policy.ShortWindow <= 0 {
		policy.ShortWindow = DefaultPolicy.ShortWindow
	}
	if policy.LongWindow <= 0 {
		policy.LongWindow = DefaultPolicy.LongWindow
	}
	return &Engine{policy: policy}
}

// Recompute строит полный снапшот AssetAnalytics. Никогда не возвращает
// ошибку: пустые входы дают нулевую запись с confidence=low, trend=stable.
// Запись заменяется целиком, частичных обновлений не бывает.
func (e *Engine) Recompute(
	assetKey string,
	now time.Time,
	listings []types.ActiveListing,
	recentEvents []types.MarketEvent,
) *types.AssetAnalytics {
	result := types.EmptyAnalytics(assetKey, now)

	// Дедупликация: источники могут переотправлять события,
	// повтор не должен учитываться дважды
	sales := dedupBuys(recentEvents)

	// Флоры по текущим лотам
	floor1, floor2, floor3 := computeFloors(listings)
	result.Floor1st = floor1
	result.Floor2nd = floor2
	result.Floor3rd = floor3
	result.ListingsCount = len(listings)

	// Окна продаж по времени события, не по времени прибытия
	shortSince := now.Add(-e.policy.ShortWindow)
	longSince := now.Add(-e.policy.LongWindow)

	var pricesLong []float64
	var lastSaleAt time.Time
	sales7d, sales30d := 0, 0

	for _, sale := range sales {
		if sale.EventTime.After(now) {
			// Событие из будущего - часы источника врут, не учитываем в окнах
			continue
		}
		if sale.EventTime.After(longSince) {
			sales30d++
			pricesLong = append(pricesLong, sale.Price)
		}
		if sale.EventTime.After(shortSince) {
			sales7d++
		}
		if sale.EventTime.After(lastSaleAt) {
			lastSaleAt = sale.EventTime
		}
	}

	result.Sales7d = sales7d
	result.Sales30d = sales30d
	if !lastSaleAt.IsZero() {
		t := lastSaleAt
		result.LastSaleAt = &t
	}

	// Квантили цен продаж за длинное окно
	if q25, ok := quantile(pricesLong, 0.25); ok {
		result.PriceQ25 = &q25
	}
	if q50, ok := quantile(pricesLong, 0.50); ok {
		result.PriceQ50 = &q50
	}
	if q75, ok := quantile(pricesLong, 0.75); ok {
		result.PriceQ75 = &q75
	}
	if pMax, ok := maxSample(pricesLong); ok {
		result.PriceMax = &pMax
	}

	result.LiquidityScore = liquidityScore(sales7d, len(listings))
	result.ConfidenceLevel = e.confidenceLevel(sales7d, sales30d, lastSaleAt, now)
	result.Trend = e.trend(sales, now)

	return result
}

// dedupBuys отбирает buy-события, отбрасывая повторы по идентичности
func dedupBuys(events []types.MarketEvent) []types.MarketEvent {
	seen := make(map[string]bool, len(events))
	var sales []types.MarketEvent
	for i := range events {
		ev := events[i]
		if ev.EventType != types.EventBuy {
			continue
		}
		key := ev.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		sales = append(sales, ev)
	}
	return sales
}

// computeFloors возвращает 1/2/3 порядковые статистики по различным ценам.
// Лоты с равной ценой считаются одним уровнем, тай-брейк по listed_at.
func computeFloors(listings []types.ActiveListing) (f1, f2, f3 *float64) {
	if len(listings) == 0 {
		return nil, nil, nil
	}

	sorted := make([]types.ActiveListing, len(listings))
	copy(sorted, listings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].ListedAt.Before(sorted[j].ListedAt)
	})

	var distinct []float64
	for _, l := range sorted {
		if len(distinct) > 0 && distinct[len(distinct)-1] == l.Price {
			continue
		}
		distinct = append(distinct, l.Price)
		if len(distinct) == 3 {
			break
		}
	}

	if len(distinct) >= 1 {
		f1 = &distinct[0]
	}
	if len(distinct) >= 2 {
		f2 = &distinct[1]
	}
	if len(distinct) >= 3 {
		f3 = &distinct[2]
	}
	return f1, f2, f3
}

// liquidityScore - монотонная функция продаж и глубины листингов в [0,10].
// Больше продаж и больше лотов никогда не снижают оценку.
func liquidityScore(sales7d, listingsCount int) float64 {
	score := math.Log2(float64(sales7d)+1)*2 + math.Log2(float64(listingsCount)+1)
	if score > 10 {
		return 10
	}
	return math.Round(score*10) / 10
}

// confidenceLevel - дискретная оценка надёжности по объёму и свежести выборки
func (e *Engine) confidenceLevel(sales7d, sales30d int, lastSaleAt, now time.Time) types.ConfidenceLevel {
	n := e.policy.ConfidenceSalesN
	halfN := (n + 1) / 2

	saleWithin24h := !lastSaleAt.IsZero() && now.Sub(lastSaleAt) <= 24*time.Hour

	switch {
	case sales7d >= n && saleWithin24h:
		return types.ConfidenceVeryHigh
	case sales7d >= halfN:
		return types.ConfidenceHigh
	case sales30d > 0:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// trend сравнивает медиану цен последнего короткого окна с предыдущим
func (e *Engine) trend(sales []types.MarketEvent, now time.Time) types.Trend {
	currentSince := now.Add(-e.policy.ShortWindow)
	previousSince := now.Add(-2 * e.policy.ShortWindow)

	var current, previous []float64
	for _, sale := range sales {
		switch {
		case sale.EventTime.After(now):
			continue
		case sale.EventTime.After(currentSince):
			current = append(current, sale.Price)
		case sale.EventTime.After(previousSince):
			previous = append(previous, sale.Price)
		}
	}

	currentQ50, okCur := quantile(current, 0.50)
	previousQ50, okPrev := quantile(previous, 0.50)
	if !okCur || !okPrev || previousQ50 == 0 {
		return types.TrendStable
	}

	changePct := (currentQ50 - previousQ50) / previousQ50 * 100
	switch {
	case changePct > e.policy.TrendThresholdPct:
		return types.TrendRising
	case changePct < -e.policy.TrendThresholdPct:
		return types.TrendFalling
	default:
		return types.TrendStable
	}
}
