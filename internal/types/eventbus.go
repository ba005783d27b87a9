// internal/types/eventbus.go
package types

import (
	"sync"
	"time"
)

// EventBus - интерфейс шины событий
type EventBus interface {
	// Publish публикует событие
	Publish(event Event) error

	// PublishSync публикует событие синхронно
	PublishSync(event Event) error

	// Subscribe подписывает обработчик на тип события
	Subscribe(eventType BusEventType, subscriber EventSubscriber)

	// Unsubscribe отписывает обработчика от типа события
	Unsubscribe(eventType BusEventType, subscriber EventSubscriber)

	// Start запускает EventBus
	Start()

	// Stop останавливает EventBus
	Stop()
}

// Event - структура события шины
type Event struct {
	ID        string       `json:"id"`
	Type      BusEventType `json:"type"`
	Source    string       `json:"source"`
	Data      interface{}  `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

// BusEventType - тип события внутренней шины
type BusEventType string

// EventSubscriber - интерфейс подписчика
type EventSubscriber interface {
	HandleEvent(event Event) error
	GetName() string
	GetSubscribedEvents() []BusEventType
}

// EventBusMetrics - метрики EventBus
type EventBusMetrics struct {
	Mu               sync.RWMutex
	EventsPublished  int64                `json:"events_published"`
	EventsProcessed  int64                `json:"events_processed"`
	EventsFailed     int64                `json:"events_failed"`
	SubscribersCount map[BusEventType]int `json:"subscribers_count"`
	ProcessingTime   time.Duration        `json:"processing_time"`
}

// Константы типов событий
const (
	BusServiceStarted   BusEventType = "service_started"
	BusServiceStopped   BusEventType = "service_stopped"
	BusMarketEvent      BusEventType = "market_event_received"
	BusAnalyticsUpdated BusEventType = "analytics_updated"
	BusDealSynthesized  BusEventType = "deal_synthesized"
	BusAlertDecision    BusEventType = "alert_decision"
	BusMarketUpdate     BusEventType = "market_update"
	BusError            BusEventType = "error"
)
