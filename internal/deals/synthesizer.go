// internal/deals/synthesizer.go
package deals

import (
	"math"
	"time"

	"gift-market-sniper/internal/analytics"
	"gift-market-sniper/internal/types"
)

// Synthesizer собирает Deal из рыночного события и снапшота аналитики.
// Не хранит состояния: один и тот же вход даёт один и тот же Deal.
type Synthesizer struct{}

// NewSynthesizer создает синтезатор дилов
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize строит Deal для оценки алерт-движком
func (s *Synthesizer) Synthesize(event *types.MarketEvent, a *types.AssetAnalytics, now time.Time) types.Deal {
	deal := types.Deal{
		AssetKey:       event.AssetKey(),
		GiftID:         event.GiftID,
		GiftName:       event.GiftName,
		Model:          event.Model,
		Backdrop:       event.Backdrop,
		Pattern:        event.Pattern,
		Number:         event.Number,
		Price:          event.Price,
		IsBlackPack:    event.IsBlackPack(),
		EventType:      event.EventType,
		EventTime:      event.EventTime,
		Source:         event.Source,
		Marketplace:    event.Marketplace,
		MarketplaceURL: event.Marketplace.GiftURL(event.GiftID),
		PhotoURL:       event.PhotoURL,
		EventID:        event.DedupKey(),
	}

	if a == nil {
		a = types.EmptyAnalytics(deal.AssetKey, now)
	}

	deal.ConfidenceLevel = a.ConfidenceLevel
	deal.LiquidityScore = a.LiquidityScore
	deal.ListingsCount = a.ListingsCount

	// Справочная цена: первый флор, иначе медиана продаж, иначе нет.
	// Когда цена лота совпадает с первым флором, лот сам и есть флор
	// (зеркало лотов обновляется до пересчёта), и профит против себя
	// всегда нулевой. Для таких лотов справочной становится ARP,
	// но только при независимой опоре: втором флоре или медиане
	// продаж. Единственный лот без истории продаж справочной цены
	// не имеет.
	switch {
	case a.Floor1st != nil && deal.Price == *a.Floor1st:
		if a.Floor2nd != nil || a.PriceQ50 != nil {
			if arp := analytics.AdaptiveReferencePrice(a); arp != nil {
				deal.ReferencePrice = arp
				deal.ReferenceType = "arp"
			}
		}
	case a.Floor1st != nil:
		deal.ReferencePrice = a.Floor1st
		deal.ReferenceType = "1st floor"
	case a.PriceQ50 != nil:
		deal.ReferencePrice = a.PriceQ50
		deal.ReferenceType = "sales median"
	}

	// Профит считается только при положительной справочной цене.
	// nil означает "не вычислим", это не нулевой профит.
	if deal.ReferencePrice != nil && *deal.ReferencePrice > 0 && deal.Price > 0 {
		profit := (*deal.ReferencePrice - deal.Price) / *deal.ReferencePrice * 100
		profit = math.Round(profit*10) / 10
		deal.ProfitPct = &profit
	}

	deal.Hotness = hotness(event, a, now)
	profit, hasProfit := deal.Profit()
	deal.IsPriority = deal.Hotness >= 7 || (hasProfit && profit >= 25)
	deal.QualityBadge = qualityBadge(&deal)

	return deal
}

// hotness - оценка "горячести" в [0,10]: свежесть события плюс
// скорость недавних продаж. Чем активнее торгуется актив и чем
// свежее событие, тем выше.
func hotness(event *types.MarketEvent, a *types.AssetAnalytics, now time.Time) float64 {
	score := 0.0

	// Свежесть события
	age := now.Sub(event.EventTime)
	switch {
	case age < 5*time.Minute:
		score += 4
	case age < 30*time.Minute:
		score += 2.5
	case age < 2*time.Hour:
		score += 1
	}

	// Скорость продаж за короткое окно
	score += math.Min(math.Log2(float64(a.Sales7d)+1)*1.5, 4)

	// Ликвидность
	score += a.LiquidityScore * 0.2

	// Падающий рынок - окно возможности для снайпера
	if a.Trend == types.TrendFalling {
		score += 1
	}

	score = math.Min(score, 10)
	return math.Round(score*10) / 10
}

// qualityBadge - единственная метка качества, первое совпавшее
// правило выигрывает: BLACK_PACK > GEM > SNIPER > HOT
func qualityBadge(deal *types.Deal) types.QualityBadge {
	profit, hasProfit := deal.Profit()

	if deal.IsBlackPack {
		return types.BadgeBlackPack
	}
	if hasProfit && profit >= 30 &&
		(deal.ConfidenceLevel == types.ConfidenceHigh || deal.ConfidenceLevel == types.ConfidenceVeryHigh) {
		return types.BadgeGem
	}
	if hasProfit && profit >= 50 {
		return types.BadgeSniper
	}
	if deal.Hotness >= 7 {
		return types.BadgeHot
	}
	return types.BadgeNone
}
