// internal/events/subscribers.go
package events

import (
	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"
)

// BaseSubscriber - базовая реализация подписчика
type BaseSubscriber struct {
	name             string
	subscribedEvents []types.BusEventType
	handler          func(types.Event) error
}

// NewBaseSubscriber создает нового подписчика
func NewBaseSubscriber(name string, eventTypes []types.BusEventType, handler func(types.Event) error) *BaseSubscriber {
	return &BaseSubscriber{
		name:             name,
		subscribedEvents: eventTypes,
		handler:          handler,
	}
}

// HandleEvent обрабатывает событие
func (s *BaseSubscriber) HandleEvent(event types.Event) error {
	return s.handler(event)
}

// GetName возвращает имя подписчика
func (s *BaseSubscriber) GetName() string {
	return s.name
}

// GetSubscribedEvents возвращает типы событий
func (s *BaseSubscriber) GetSubscribedEvents() []types.BusEventType {
	return s.subscribedEvents
}

// NewErrorLoggerSubscriber - подписчик, логирующий ошибки движка
func NewErrorLoggerSubscriber() *BaseSubscriber {
	return NewBaseSubscriber(
		"error_logger",
		[]types.BusEventType{types.BusError},
		func(event types.Event) error {
			logger.Error("💥 Ошибка движка (источник %s): %v", event.Source, event.Data)
			return nil
		},
	)
}
