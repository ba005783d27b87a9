// internal/types/analytics.go
package types

import "time"

// ConfidenceLevel - качественная надёжность аналитики по активу
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceLow      ConfidenceLevel = "low"
)

// Trend - направление рынка по активу
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// AssetAnalytics - агрегированная аналитика по ключу актива.
// Пересчитывается целиком: читатель никогда не видит смесь полей
// из двух разных проходов пересчёта.
type AssetAnalytics struct {
	AssetKey        string          `json:"asset_key" db:"asset_key"`
	Floor1st        *float64        `json:"floor_1st" db:"floor_1st"`
	Floor2nd        *float64        `json:"floor_2nd" db:"floor_2nd"`
	Floor3rd        *float64        `json:"floor_3rd" db:"floor_3rd"`
	ListingsCount   int             `json:"listings_count" db:"listings_count"`
	Sales7d         int             `json:"sales_7d" db:"sales_7d"`
	Sales30d        int             `json:"sales_30d" db:"sales_30d"`
	PriceQ25        *float64        `json:"price_q25" db:"price_q25"`
	PriceQ50        *float64        `json:"price_q50" db:"price_q50"`
	PriceQ75        *float64        `json:"price_q75" db:"price_q75"`
	PriceMax        *float64        `json:"price_max" db:"price_max"`
	LiquidityScore  float64         `json:"liquidity_score" db:"liquidity_score"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level" db:"confidence_level"`
	LastSaleAt      *time.Time      `json:"last_sale_at" db:"last_sale_at"`
	Trend           Trend           `json:"trend" db:"trend"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// EmptyAnalytics возвращает нулевую аналитику для актива без истории.
// Запрос аналитики по неизвестному активу - не ошибка.
func EmptyAnalytics(assetKey string, now time.Time) *AssetAnalytics {
	return &AssetAnalytics{
		AssetKey:        assetKey,
		ConfidenceLevel: ConfidenceLow,
		Trend:           TrendStable,
		UpdatedAt:       now,
	}
}

// IsStale проверяет, не устарела ли запись кэша
func (a *AssetAnalytics) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(a.UpdatedAt) > maxAge
}
