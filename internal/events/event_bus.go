// internal/events/event_bus.go
package events

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"

	"github.com/google/uuid"
)

// EventBus - центральная шина событий движка. Явная зависимость,
// передаётся конструкторами, без глобальных синглтонов.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[types.BusEventType][]types.EventSubscriber
	middlewares []Middleware
	eventBuffer chan types.Event
	metrics     *types.EventBusMetrics
	config      EventBusConfig
	running     bool
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// EventBusConfig - конфигурация EventBus
type EventBusConfig struct {
	BufferSize    int           `json:"buffer_size"`
	WorkerCount   int           `json:"worker_count"`
	MaxRetries    int           `json:"max_retries"`
	RetryDelay    time.Duration `json:"retry_delay"`
	EnableLogging bool          `json:"enable_logging"`
}

// DefaultConfig - конфигурация по умолчанию
var DefaultConfig = EventBusConfig{
	BufferSize:    1000,
	WorkerCount:   8,
	MaxRetries:    3,
	RetryDelay:    100 * time.Millisecond,
	EnableLogging: true,
}

// Middleware - обработчик, оборачивающий доставку события
type Middleware interface {
	Process(event types.Event, next HandlerFunc) error
}

// HandlerFunc - функция обработки события
type HandlerFunc func(event types.Event) error

// NewEventBus создает новую шину событий
func NewEventBus(config ...EventBusConfig) *EventBus {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &EventBus{
		subscribers: make(map[types.BusEventType][]types.EventSubscriber),
		middlewares: make([]Middleware, 0),
		eventBuffer: make(chan types.Event, cfg.BufferSize),
		metrics: &types.EventBusMetrics{
			SubscribersCount: make(map[types.BusEventType]int),
		},
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start запускает EventBus
func (b *EventBus) Start() {
	if b.running {
		return
	}

	b.running = true

	// Запускаем обработчиков событий
	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.eventWorker()
	}

	if b.config.EnableLogging {
		logger.Info("🚀 EventBus запущен с %d обработчиками", b.config.WorkerCount)
	}
}

// Stop останавливает EventBus
func (b *EventBus) Stop() {
	if !b.running {
		return
	}

	b.running = false
	close(b.stopChan)
	b.wg.Wait()

	if b.config.EnableLogging {
		logger.Info("🛑 EventBus остановлен")
	}
}

// Subscribe подписывает обработчик на тип события
func (b *EventBus) Subscribe(eventType types.BusEventType, subscriber types.EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Проверяем, что подписчик подписан на этот тип события
	found := false
	for _, et := range subscriber.GetSubscribedEvents() {
		if et == eventType {
			found = true
			break
		}
	}

	if !found {
		logger.Warn("⚠️ Подписчик %s не подписан на событие %s",
			subscriber.GetName(), eventType)
		return
	}

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
	b.metrics.SubscribersCount[eventType] = len(b.subscribers[eventType])

	if b.config.EnableLogging {
		logger.Info("✅ %s подписался на %s", subscriber.GetName(), eventType)
	}
}

// Unsubscribe отписывает обработчик от типа события
func (b *EventBus) Unsubscribe(eventType types.BusEventType, subscriber types.EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, exists := b.subscribers[eventType]
	if !exists {
		return
	}

	for i, sub := range subscribers {
		if sub == subscriber {
			b.subscribers[eventType] = append(subscribers[:i], subscribers[i+1:]...)
			b.metrics.SubscribersCount[eventType] = len(b.subscribers[eventType])

			if b.config.EnableLogging {
				logger.Info("❌ %s отписался от %s", subscriber.GetName(), eventType)
			}
			return
		}
	}
}

// Publish публикует событие
func (b *EventBus) Publish(event types.Event) error {
	if !b.running {
		return fmt.Errorf("event bus is not running")
	}

	// Устанавливаем ID и временную метку если они не установлены
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventBuffer <- event:
		b.metrics.Mu.Lock()
		b.metrics.EventsPublished++
		b.metrics.Mu.Unlock()
		return nil
	default:
		// Буфер полон
		if b.config.EnableLogging {
			logger.Warn("⚠️ Буфер событий полон, событие отброшено: %s", event.Type)
		}
		return fmt.Errorf("event buffer is full")
	}
}

// PublishSync публикует событие синхронно
func (b *EventBus) PublishSync(event types.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return b.processEvent(event)
}

// AddMiddleware добавляет middleware
func (b *EventBus) AddMiddleware(middleware Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, middleware)
}

// eventWorker - обработчик событий
func (b *EventBus) eventWorker() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventBuffer:
			b.safeProcess(event)
		case <-b.stopChan:
			return
		}
	}
}

// safeProcess обрабатывает событие с восстановлением после паники
func (b *EventBus) safeProcess(event types.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("⚠️ Паника восстановлена при обработке %s: %v\n%s",
				event.Type, r, debug.Stack())
		}
	}()

	b.processEvent(event)
}

// processEvent обрабатывает одно событие
func (b *EventBus) processEvent(event types.Event) error {
	startTime := time.Now()
	defer func() {
		b.metrics.Mu.Lock()
		b.metrics.ProcessingTime += time.Since(startTime)
		b.metrics.EventsProcessed++
		b.metrics.Mu.Unlock()
	}()

	b.mu.RLock()
	subscribers := b.subscribers[event.Type]
	b.mu.RUnlock()

	if len(subscribers) == 0 {
		return nil
	}

	handler := b.createHandlerChain(subscribers)
	return b.executeWithMiddleware(event, handler)
}

// createHandlerChain создает цепочку обработчиков
func (b *EventBus) createHandlerChain(subscribers []types.EventSubscriber) HandlerFunc {
	return func(event types.Event) error {
		var lastError error

		for _, subscriber := range subscribers {
			if err := b.handleEventWithRetry(event, subscriber); err != nil {
				lastError = err
				logger.Error("❌ Ошибка обработки события %s подписчиком %s: %v",
					event.Type, subscriber.GetName(), err)
			}
		}

		return lastError
	}
}

// handleEventWithRetry обрабатывает событие с повторными попытками
func (b *EventBus) handleEventWithRetry(event types.Event, subscriber types.EventSubscriber) error {
	var lastError error

	for attempt := 1; attempt <= b.config.MaxRetries; attempt++ {
		err := subscriber.HandleEvent(event)
		if err == nil {
			return nil
		}

		lastError = err

		if attempt < b.config.MaxRetries {
			time.Sleep(b.config.RetryDelay * time.Duration(attempt))
		}
	}

	b.metrics.Mu.Lock()
	b.metrics.EventsFailed++
	b.metrics.Mu.Unlock()

	return lastError
}

// executeWithMiddleware выполняет обработку через цепочку middleware
func (b *EventBus) executeWithMiddleware(event types.Event, handler HandlerFunc) error {
	chain := handler
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		mw := b.middlewares[i]
		next := chain
		chain = func(event types.Event) error {
			return mw.Process(event, next)
		}
	}

	return chain(event)
}

// GetMetrics возвращает снимок метрик
func (b *EventBus) GetMetrics() (published, processed, failed int64) {
	b.metrics.Mu.RLock()
	defer b.metrics.Mu.RUnlock()
	return b.metrics.EventsPublished, b.metrics.EventsProcessed, b.metrics.EventsFailed
}

// GetSubscriberCount возвращает количество подписчиков
func (b *EventBus) GetSubscriberCount(eventType types.BusEventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
