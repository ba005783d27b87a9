// internal/notifier/ws_notifier.go
package notifier

import (
	"time"

	"gift-market-sniper/internal/types"
	"gift-market-sniper/internal/ws"
)

// WSNotifier транслирует персональные решения об алертах
// в WebSocket-канал кадром alert
type WSNotifier struct {
	hub     *ws.Hub
	enabled bool
	stats   map[string]interface{}
}

// NewWSNotifier создает WebSocket-нотификатор
func NewWSNotifier(hub *ws.Hub) *WSNotifier {
	return &WSNotifier{
		hub:     hub,
		enabled: true,
		stats: map[string]interface{}{
			"sent":           0,
			"last_sent_time": time.Time{},
			"type":           "websocket",
		},
	}
}

// Send отправляет решение в push-канал
func (w *WSNotifier) Send(decision types.AlertDecision) error {
	if !w.enabled {
		return nil
	}

	w.hub.Broadcast(ws.FrameAlert, decision)

	w.stats["sent"] = w.stats["sent"].(int) + 1
	w.stats["last_sent_time"] = time.Now()
	return nil
}

// Name возвращает имя
func (w *WSNotifier) Name() string {
	return "websocket"
}

// IsEnabled возвращает статус
func (w *WSNotifier) IsEnabled() bool {
	return w.enabled
}

// SetEnabled включает/выключает
func (w *WSNotifier) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// GetStats возвращает статистику
func (w *WSNotifier) GetStats() map[string]interface{} {
	return w.stats
}
