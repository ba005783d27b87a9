// internal/types/event.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType - тип рыночного события
type EventType string

const (
	EventBuy         EventType = "buy"
	EventListing     EventType = "listing"
	EventChangePrice EventType = "change_price"
)

// EventSource - источник события (коллектор)
type EventSource string

const (
	SourceSwiftGifts EventSource = "swift_gifts"
	SourceTonnel     EventSource = "tonnel"
	SourceTonAPI     EventSource = "ton_api"
	SourceFragment   EventSource = "fragment"
)

// Marketplace - площадка, на которой размещён лот
type Marketplace string

const (
	MarketplacePortals  Marketplace = "portals"
	MarketplaceMrkt     Marketplace = "mrkt"
	MarketplaceTonnel   Marketplace = "tonnel"
	MarketplaceGetgems  Marketplace = "getgems"
	MarketplaceFragment Marketplace = "fragment"
	MarketplaceUnknown  Marketplace = "unknown"
)

// GiftURL возвращает прямую ссылку на лот на площадке
func (m Marketplace) GiftURL(giftID string) string {
	switch m {
	case MarketplacePortals:
		return fmt.Sprintf("https://t.me/portals/market?startapp=%s", giftID)
	case MarketplaceMrkt:
		return fmt.Sprintf("https://t.me/mrkt/app?startapp=%s", giftID)
	case MarketplaceTonnel:
		return fmt.Sprintf("https://t.me/TonnelMarketBot/market?startapp=%s", giftID)
	case MarketplaceGetgems:
		return fmt.Sprintf("https://getgems.io/nft/%s", giftID)
	case MarketplaceFragment:
		return fmt.Sprintf("https://fragment.com/gift/%s", giftID)
	default:
		return fmt.Sprintf("https://t.me/nft/%s", giftID)
	}
}

// MarketEvent - рыночное событие от коллектора. Неизменяемо после приёма.
type MarketEvent struct {
	EventTime   time.Time       `json:"event_time" db:"event_time"`
	EventType   EventType       `json:"event_type" db:"event_type"`
	GiftID      string          `json:"gift_id" db:"gift_id"`
	GiftName    string          `json:"gift_name,omitempty" db:"gift_name"`
	Model       string          `json:"model" db:"model"`
	Backdrop    string          `json:"backdrop,omitempty" db:"backdrop"`
	Pattern     string          `json:"pattern,omitempty" db:"pattern"`
	Number      *int            `json:"number,omitempty" db:"number"`
	Price       float64         `json:"price" db:"price"`
	PriceOld    *float64        `json:"price_old,omitempty" db:"price_old"`
	PhotoURL    string          `json:"photo_url,omitempty" db:"photo_url"`
	Source      EventSource     `json:"source" db:"source"`
	Marketplace Marketplace     `json:"marketplace,omitempty" db:"marketplace"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty" db:"raw_payload"`
}

// AssetKey возвращает канонический ключ актива для группировки
func (e *MarketEvent) AssetKey() string {
	return ResolveAssetKey(e.Model, e.Backdrop, e.Number)
}

// DedupKey - уникальный идентификатор события для дедупликации.
// Источники могут переотправлять одно и то же событие.
func (e *MarketEvent) DedupKey() string {
	return fmt.Sprintf("%d:%s:%s", e.EventTime.UTC().UnixNano(), e.GiftID, e.EventType)
}

// IsBlackPack проверяет, относится ли событие к black pack
func (e *MarketEvent) IsBlackPack() bool {
	return IsBlackPackBackdrop(e.Backdrop)
}

// Validate проверяет обязательные поля события
func (e *MarketEvent) Validate() error {
	if e.GiftID == "" {
		return NewEngineError(ErrMalformedEvent, "gift_id is empty", nil)
	}
	if e.Model == "" {
		return NewEngineError(ErrMalformedEvent, "model is empty", nil)
	}
	if e.EventTime.IsZero() {
		return NewEngineError(ErrMalformedEvent, "event_time is zero", nil)
	}
	if e.Price <= 0 {
		return NewEngineError(ErrMalformedEvent, fmt.Sprintf("invalid price %f", e.Price), nil)
	}
	switch e.EventType {
	case EventBuy, EventListing, EventChangePrice:
	default:
		return NewEngineError(ErrMalformedEvent, fmt.Sprintf("unknown event_type %q", e.EventType), nil)
	}
	return nil
}

// ActiveListing - актуальный лот на рынке, уникален по gift_id.
// Обновляется событиями listing/change_price, удаляется по buy.
type ActiveListing struct {
	GiftID      string      `json:"gift_id" db:"gift_id"`
	GiftName    string      `json:"gift_name,omitempty" db:"gift_name"`
	Model       string      `json:"model" db:"model"`
	Backdrop    string      `json:"backdrop,omitempty" db:"backdrop"`
	Pattern     string      `json:"pattern,omitempty" db:"pattern"`
	Number      *int        `json:"number,omitempty" db:"number"`
	Price       float64     `json:"price" db:"price"`
	ListedAt    time.Time   `json:"listed_at" db:"listed_at"`
	LastUpdated time.Time   `json:"last_updated" db:"last_updated"`
	Source      EventSource `json:"source" db:"source"`
}

// AssetKey возвращает канонический ключ актива
func (l *ActiveListing) AssetKey() string {
	return ResolveAssetKey(l.Model, l.Backdrop, l.Number)
}
