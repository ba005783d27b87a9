// internal/events/middleware.go
package events

import (
	"sync"
	"time"

	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"
)

// LoggingMiddleware - middleware для логирования медленных обработчиков
type LoggingMiddleware struct {
	SlowThreshold time.Duration
}

func (m *LoggingMiddleware) Process(event types.Event, next HandlerFunc) error {
	start := time.Now()

	err := next(event)

	duration := time.Since(start)
	threshold := m.SlowThreshold
	if threshold == 0 {
		threshold = 500 * time.Millisecond
	}

	if err != nil {
		logger.Error("❌ Обработка %s завершилась ошибкой за %v: %v",
			event.Type, duration, err)
	} else if duration > threshold {
		logger.Warn("🐌 Медленная обработка %s: %v", event.Type, duration)
	}

	return err
}

// ThrottlingMiddleware - middleware для ограничения частоты по типу события.
// Используется для market_update, чтобы не заливать push-поверхность.
type ThrottlingMiddleware struct {
	limits   map[types.BusEventType]time.Duration
	lastCall map[types.BusEventType]time.Time
	mu       sync.Mutex
}

func NewThrottlingMiddleware(limits map[types.BusEventType]time.Duration) *ThrottlingMiddleware {
	return &ThrottlingMiddleware{
		limits:   limits,
		lastCall: make(map[types.BusEventType]time.Time),
	}
}

func (m *ThrottlingMiddleware) Process(event types.Event, next HandlerFunc) error {
	m.mu.Lock()
	limit, hasLimit := m.limits[event.Type]
	last, hasLast := m.lastCall[event.Type]
	if hasLimit && hasLast && time.Since(last) < limit {
		m.mu.Unlock()
		// Пропускаем событие из-за ограничения частоты
		logger.Debug("⏳ Пропуск события %s (лимит частоты)", event.Type)
		return nil
	}
	m.lastCall[event.Type] = time.Now()
	m.mu.Unlock()

	return next(event)
}
