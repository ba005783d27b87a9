// internal/types/deal.go
package types

import "time"

// QualityBadge - единственная метка качества дила
type QualityBadge string

const (
	BadgeNone      QualityBadge = ""
	BadgeBlackPack QualityBadge = "BLACK_PACK"
	BadgeGem       QualityBadge = "GEM"
	BadgeSniper    QualityBadge = "SNIPER"
	BadgeHot       QualityBadge = "HOT"
)

// Priority возвращает приоритет бейджа для ранжирования (меньше = важнее)
func (b QualityBadge) Priority() int {
	switch b {
	case BadgeBlackPack:
		return 0
	case BadgeGem:
		return 1
	case BadgeSniper:
		return 2
	case BadgeHot:
		return 3
	default:
		return 4
	}
}

// Deal - производный объект оценки: событие + снапшот аналитики.
// Не персистится, синтезируется на каждую оценку.
type Deal struct {
	AssetKey       string          `json:"asset_key"`
	GiftID         string          `json:"gift_id"`
	GiftName       string          `json:"gift_name,omitempty"`
	Model          string          `json:"model"`
	Backdrop       string          `json:"backdrop,omitempty"`
	Pattern        string          `json:"pattern,omitempty"`
	Number         *int            `json:"number,omitempty"`
	Price          float64         `json:"price"`
	ReferencePrice *float64        `json:"reference_price"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	// ProfitPct == nil означает "профит невозможно вычислить",
	// это не то же самое, что нулевой профит.
	ProfitPct       *float64        `json:"profit_pct"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	LiquidityScore  float64         `json:"liquidity_score"`
	ListingsCount   int             `json:"listings_count"`
	Hotness         float64         `json:"hotness"`
	IsBlackPack     bool            `json:"is_black_pack"`
	IsPriority      bool            `json:"is_priority"`
	QualityBadge    QualityBadge    `json:"quality_badge,omitempty"`
	EventType       EventType       `json:"event_type"`
	EventTime       time.Time       `json:"event_time"`
	Source          EventSource     `json:"source"`
	Marketplace     Marketplace     `json:"marketplace,omitempty"`
	MarketplaceURL  string          `json:"marketplace_url,omitempty"`
	PhotoURL        string          `json:"photo_url,omitempty"`
	// ID исходного события, для привязки SentAlert
	EventID string `json:"event_id"`
}

// Profit возвращает профит и флаг его вычислимости
func (d *Deal) Profit() (float64, bool) {
	if d.ProfitPct == nil {
		return 0, false
	}
	return *d.ProfitPct, true
}

// AlertDecision - решение об отправке алерта пользователю
type AlertDecision struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Deal      Deal      `json:"deal"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// MarketOverview - сводка рынка для query/push-поверхностей
type MarketOverview struct {
	ActiveDeals    int       `json:"active_deals"`
	HotDeals       int       `json:"hot_deals"`
	PriorityDeals  int       `json:"priority_deals"`
	BlackPackFloor *float64  `json:"black_pack_floor"`
	GeneralFloor   *float64  `json:"general_floor"`
	MarketTrend    Trend     `json:"market_trend"`
	LastUpdated    time.Time `json:"last_updated"`
}

// DealsFeed - страница фида сделок
type DealsFeed struct {
	Deals    []Deal `json:"deals"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	HasMore  bool   `json:"has_more"`
}
