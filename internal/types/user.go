// internal/types/user.go
package types

import "time"

// AlertMode - режим алертов пользователя
type AlertMode string

const (
	ModeSpam   AlertMode = "spam"
	ModeSniper AlertMode = "sniper"
)

// BackgroundFilter - фильтр по фону
type BackgroundFilter string

const (
	BackgroundAny       BackgroundFilter = "any"
	BackgroundNone      BackgroundFilter = "none"
	BackgroundBlackPack BackgroundFilter = "black_pack"
)

// UserSettings - настройки и фильтры пользователя, одна запись на пользователя
type UserSettings struct {
	UserID           int64            `json:"user_id" db:"user_id"`
	Mode             AlertMode        `json:"mode" db:"mode"`
	PriceMin         *float64         `json:"price_min" db:"price_min"`
	PriceMax         *float64         `json:"price_max" db:"price_max"`
	ProfitMin        float64          `json:"profit_min" db:"profit_min"`
	BackgroundFilter BackgroundFilter `json:"background_filter" db:"background_filter"`
	Criterion        string           `json:"criterion" db:"criterion"`
	RarityMin        *int             `json:"rarity_min" db:"rarity_min"`
	RarityMax        *int             `json:"rarity_max" db:"rarity_max"`
	CleanOnly        bool             `json:"clean_only" db:"clean_only"`
	Active           bool             `json:"active" db:"active"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// WatchlistEntry - персональный порог профита для конкретного актива.
// Пара (user_id, asset_key) уникальна.
type WatchlistEntry struct {
	UserID          int64     `json:"user_id" db:"user_id"`
	AssetKey        string    `json:"asset_key" db:"asset_key"`
	ProfitThreshold float64   `json:"profit_threshold" db:"profit_threshold"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// MutedAsset - временное подавление всех алертов по паре (user, asset).
// Просроченные записи считаются отсутствующими, чистятся лениво.
type MutedAsset struct {
	UserID     int64     `json:"user_id" db:"user_id"`
	AssetKey   string    `json:"asset_key" db:"asset_key"`
	MutedUntil time.Time `json:"muted_until" db:"muted_until"`
}

// IsActive проверяет, действует ли мьют на данный момент
func (m *MutedAsset) IsActive(now time.Time) bool {
	return m.MutedUntil.After(now)
}

// SentAlert - append-only запись отправленного алерта.
// Единственный источник истины для решений по кулдауну.
type SentAlert struct {
	ID        string    `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	AssetKey  string    `json:"asset_key" db:"asset_key"`
	EventID   string    `json:"event_id" db:"event_id"`
	ProfitPct float64   `json:"profit_pct" db:"profit_pct"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`
}
