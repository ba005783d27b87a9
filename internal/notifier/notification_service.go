// internal/notifier/notification_service.go
package notifier

import (
	"sync"
	"time"

	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"
	"gift-market-sniper/pkg/retry"
)

// Параметры повторов доставки через отдельный нотификатор
const (
	sendAttempts     = 3
	sendRetryInitial = 50 * time.Millisecond
	sendRetryMax     = 500 * time.Millisecond
)

// Notifier интерфейс отдельного нотификатора
type Notifier interface {
	Send(decision types.AlertDecision) error
	Name() string
	IsEnabled() bool
	SetEnabled(bool)
	GetStats() map[string]interface{}
}

// CompositeNotificationService композитный сервис уведомлений.
// Раздает решение об алерте всем включенным нотификаторам;
// ошибка одного канала не блокирует остальные.
type CompositeNotificationService struct {
	notifiers []Notifier
	enabled   bool
	mu        sync.RWMutex
	stats     map[string]interface{}
}

// NewCompositeNotificationService создает композитный сервис
func NewCompositeNotificationService() *CompositeNotificationService {
	return &CompositeNotificationService{
		notifiers: make([]Notifier, 0),
		enabled:   true,
		stats: map[string]interface{}{
			"total_sent":     0,
			"successful":     0,
			"failed":         0,
			"last_sent_time": time.Time{},
		},
	}
}

// Dispatch отправляет решение через все нотификаторы
func (c *CompositeNotificationService) Dispatch(decision types.AlertDecision) error {
	if !c.IsEnabled() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastError error
	sentCount := 0

	for _, n := range c.notifiers {
		if n.IsEnabled() {
			if err := sendWithRetry(n, decision); err != nil {
				logger.Error("❌ Ошибка отправки через %s: %v", n.Name(), err)
				lastError = err
			} else {
				sentCount++
			}
		}
	}

	// Обновляем статистику
	c.stats["total_sent"] = c.stats["total_sent"].(int) + 1
	if lastError == nil {
		c.stats["successful"] = c.stats["successful"].(int) + 1
	} else {
		c.stats["failed"] = c.stats["failed"].(int) + 1
	}
	c.stats["last_sent_time"] = time.Now()

	if sentCount == 0 {
		return lastError
	}

	return nil
}

// sendWithRetry повторяет доставку через один нотификатор с
// нарастающей задержкой. Канал с временным сбоем не теряет алерт.
func sendWithRetry(n Notifier, decision types.AlertDecision) error {
	b := retry.NewBackoff(sendRetryInitial, sendRetryMax)

	var err error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(b.Next())
		}
		if err = n.Send(decision); err == nil {
			return nil
		}
		logger.Warn("⚠️ Повтор доставки через %s (попытка %d): %v", n.Name(), attempt+1, err)
	}
	return err
}

// SetEnabled включает/выключает сервис
func (c *CompositeNotificationService) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// IsEnabled возвращает статус
func (c *CompositeNotificationService) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// GetStats возвращает статистику всех нотификаторов
func (c *CompositeNotificationService) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]interface{})
	for k, v := range c.stats {
		result[k] = v
	}

	notifierStats := make(map[string]interface{})
	for _, n := range c.notifiers {
		notifierStats[n.Name()] = n.GetStats()
	}
	result["notifiers"] = notifierStats

	return result
}

// AddNotifier добавляет нотификатор
func (c *CompositeNotificationService) AddNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifiers = append(c.notifiers, n)
}

// RemoveNotifier удаляет нотификатор по имени
func (c *CompositeNotificationService) RemoveNotifier(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.notifiers {
		if n.Name() == name {
			c.notifiers = append(c.notifiers[:i], c.notifiers[i+1:]...)
			break
		}
	}
}
