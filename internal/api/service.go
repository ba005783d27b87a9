// internal/api/service.go
package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gift-market-sniper/internal/alerts"
	"gift-market-sniper/internal/deals"
	"gift-market-sniper/internal/storage"
	"gift-market-sniper/internal/types"
)

// SortOrder - порядок сортировки фида сделок
type SortOrder string

const (
	SortSmart     SortOrder = "smart"
	SortProfit    SortOrder = "profit"
	SortHotness   SortOrder = "hotness"
	SortTime      SortOrder = "time"
	SortLiquidity SortOrder = "liquidity"
)

// DealsFilter - фильтры фида сделок
type DealsFilter struct {
	PriceMin      *float64
	PriceMax      *float64
	ProfitMin     *float64
	BlackPackOnly bool
	PriorityOnly  bool
	Badge         types.QualityBadge
}

// AnalyticsRefresher пересчитывает снапшот ключа по требованию
// query-слоя. Реализуется инжестором.
type AnalyticsRefresher interface {
	RefreshKey(ctx context.Context, assetKey string) *types.AssetAnalytics
}

// Service - query-поверхность движка: фид сделок и сводка рынка.
// Читает кэш аналитики и журнал событий; протухшие снапшоты
// пересчитывает через refresher, сам ничего не мутирует.
type Service struct {
	events      storage.EventStore
	cache       storage.AnalyticsCache
	synthesizer *deals.Synthesizer
	refresher   AnalyticsRefresher

	staleAfter time.Duration
	feedWindow time.Duration
	feedLimit  int
}

// NewService создает query-сервис. refresher может быть nil:
// тогда протухшие снапшоты отдаются как есть.
func NewService(events storage.EventStore, cache storage.AnalyticsCache, synthesizer *deals.Synthesizer, refresher AnalyticsRefresher, staleAfter time.Duration) *Service {
	return &Service{
		events:      events,
		cache:       cache,
		synthesizer: synthesizer,
		refresher:   refresher,
		staleAfter:  staleAfter,
		feedWindow:  24 * time.Hour,
		feedLimit:   500,
	}
}

// GetDeals возвращает страницу фида сделок: свежие listing/change_price
// события, пересинтезированные против текущего кэша аналитики
func (s *Service) GetDeals(ctx context.Context, filter DealsFilter, order SortOrder, page, pageSize int) (*types.DealsFeed, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	now := time.Now()
	events, err := s.events.RecentMarketEvents(ctx, now.Add(-s.feedWindow), s.feedLimit)
	if err != nil {
		return nil, err
	}

	// Один дил на gift_id: берём самое свежее событие лота
	seen := make(map[string]bool, len(events))
	dealList := make([]types.Deal, 0, len(events))
	for i := range events {
		event := &events[i]
		if seen[event.GiftID] {
			continue
		}
		seen[event.GiftID] = true

		analytics := s.freshAnalytics(ctx, event.AssetKey(), now)
		deal := s.synthesizer.Synthesize(event, analytics, now)
		if matchesFilter(&deal, &filter) {
			dealList = append(dealList, deal)
		}
	}

	sortDeals(dealList, order)

	total := len(dealList)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &types.DealsFeed{
		Deals:    dealList[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  end < total,
	}, nil
}

// freshAnalytics читает снапшот из кэша, перепроверяя свежесть.
// Отсутствующий ключ дает пустую аналитику, протухший снапшот
// пересчитывается на месте.
func (s *Service) freshAnalytics(ctx context.Context, assetKey string, now time.Time) *types.AssetAnalytics {
	snapshot, err := s.cache.Get(ctx, assetKey)
	if err != nil || snapshot == nil {
		return types.EmptyAnalytics(assetKey, now)
	}
	if s.refresher != nil && s.staleAfter > 0 && snapshot.IsStale(now, s.staleAfter) {
		if fresh := s.refresher.RefreshKey(ctx, assetKey); fresh != nil {
			return fresh
		}
	}
	return snapshot
}

// GetAssetAnalytics возвращает снапшот аналитики по ключу актива.
// Неизвестный ключ - ошибка unknown_asset; протухший снапшот без
// возможности пересчёта - stale_analytics.
func (s *Service) GetAssetAnalytics(ctx context.Context, assetKey string) (*types.AssetAnalytics, error) {
	now := time.Now()

	snapshot, err := s.cache.Get(ctx, assetKey)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, types.NewEngineError(types.ErrUnknownAsset,
			fmt.Sprintf("нет истории по ключу %q", assetKey), nil)
	}
	if s.staleAfter > 0 && snapshot.IsStale(now, s.staleAfter) {
		if s.refresher == nil {
			return nil, types.NewEngineError(types.ErrStaleAnalytics,
				fmt.Sprintf("снапшот %q старше %s", assetKey, s.staleAfter), nil)
		}
		if fresh := s.refresher.RefreshKey(ctx, assetKey); fresh != nil {
			return fresh, nil
		}
	}
	return snapshot, nil
}

// GetMarketOverview возвращает сводку рынка по кэшу аналитики
func (s *Service) GetMarketOverview(ctx context.Context) (*types.MarketOverview, error) {
	now := time.Now()

	feed, err := s.GetDeals(ctx, DealsFilter{}, SortTime, 1, 100)
	if err != nil {
		return nil, err
	}

	overview := &types.MarketOverview{
		ActiveDeals: feed.Total,
		LastUpdated: now,
	}
	for i := range feed.Deals {
		if feed.Deals[i].Hotness >= 7 {
			overview.HotDeals++
		}
		if feed.Deals[i].IsPriority {
			overview.PriorityDeals++
		}
	}

	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return nil, err
	}

	rising, falling := 0, 0
	for _, key := range keys {
		analytics, err := s.cache.Get(ctx, key)
		if err != nil || analytics == nil || analytics.Floor1st == nil {
			continue
		}

		floor := *analytics.Floor1st
		if overview.GeneralFloor == nil || floor < *overview.GeneralFloor {
			f := floor
			overview.GeneralFloor = &f
		}

		_, backdrop, _, parseErr := types.ParseAssetKey(key)
		if parseErr == nil && types.IsBlackPackBackdrop(backdrop) {
			if overview.BlackPackFloor == nil || floor < *overview.BlackPackFloor {
				f := floor
				overview.BlackPackFloor = &f
			}
		}

		switch analytics.Trend {
		case types.TrendRising:
			rising++
		case types.TrendFalling:
			falling++
		}
	}

	overview.MarketTrend = types.TrendStable
	if rising > falling*2 {
		overview.MarketTrend = types.TrendRising
	} else if falling > rising*2 {
		overview.MarketTrend = types.TrendFalling
	}

	return overview, nil
}

func matchesFilter(deal *types.Deal, filter *DealsFilter) bool {
	if filter.PriceMin != nil && deal.Price < *filter.PriceMin {
		return false
	}
	if filter.PriceMax != nil && deal.Price > *filter.PriceMax {
		return false
	}
	if filter.ProfitMin != nil {
		profit, ok := deal.Profit()
		if !ok || profit < *filter.ProfitMin {
			return false
		}
	}
	if filter.BlackPackOnly && !deal.IsBlackPack {
		return false
	}
	if filter.PriorityOnly && !deal.IsPriority {
		return false
	}
	if filter.Badge != types.BadgeNone && deal.QualityBadge != filter.Badge {
		return false
	}
	return true
}

func sortDeals(dealList []types.Deal, order SortOrder) {
	switch order {
	case SortProfit:
		sort.SliceStable(dealList, func(i, j int) bool {
			a, _ := dealList[i].Profit()
			b, _ := dealList[j].Profit()
			return a > b
		})
	case SortHotness:
		sort.SliceStable(dealList, func(i, j int) bool {
			return dealList[i].Hotness > dealList[j].Hotness
		})
	case SortLiquidity:
		sort.SliceStable(dealList, func(i, j int) bool {
			return dealList[i].LiquidityScore > dealList[j].LiquidityScore
		})
	case SortTime:
		sort.SliceStable(dealList, func(i, j int) bool {
			return dealList[i].EventTime.After(dealList[j].EventTime)
		})
	default:
		sort.SliceStable(dealList, func(i, j int) bool {
			return alerts.SmartScore(&dealList[i]) > alerts.SmartScore(&dealList[j])
		})
	}
}
