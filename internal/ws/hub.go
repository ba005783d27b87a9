// internal/ws/hub.go
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"
)

const (
	writeTimeout  = 5 * time.Second
	sendBufferLen = 64
)

// Frame - кадр push-канала. Каждый исходящий кадр несет тип,
// полезную нагрузку и момент отправки.
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Типы кадров
const (
	FrameNewDeal      = "new_deal"
	FrameMarketUpdate = "market_update"
	FrameAlert        = "alert"
	FramePing         = "ping"
	FramePong         = "pong"
)

// Hub раздает кадры всем подключенным WebSocket-клиентам.
// Медленный клиент не тормозит остальных: при переполнении
// его буфера соединение закрывается.
type Hub struct {
	clients map[*client]bool
	mu      sync.RWMutex

	stopCh  chan struct{}
	stopped bool
}

type client struct {
	conn   *websocket.Conn
	sendCh chan Frame
}

// NewHub создает хаб
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		stopCh:  make(chan struct{}),
	}
}

// ServeHTTP принимает WebSocket-подключение и обслуживает его
// до закрытия
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn("⚠️ WS: ошибка апгрейда соединения: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		sendCh: make(chan Frame, sendBufferLen),
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	logger.Info("🔌 WS: клиент подключен, всего: %d", total)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)

	h.remove(c)
	conn.CloseNow()
}

// writeLoop отправляет клиенту кадры из его буфера
func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case frame := <-c.sendCh:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, frame)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		}
	}
}

// readLoop читает входящие кадры; поддерживается только ping
func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		var frame Frame
		if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
			return
		}

		if frame.Type == FramePing {
			select {
			case c.sendCh <- Frame{Type: FramePong, Timestamp: time.Now()}:
			default:
			}
		}
	}
}

// Broadcast отправляет кадр всем подключенным клиентам
func (h *Hub) Broadcast(frameType string, data interface{}) {
	frame := Frame{
		Type:      frameType,
		Data:      data,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.sendCh <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.Warn("⚠️ WS: буфер клиента переполнен, соединение закрыто")
		c.conn.Close(websocket.StatusPolicyViolation, "send buffer overflow")
		h.remove(c)
	}
}

// BroadcastNewDeal отправляет кадр new_deal
func (h *Hub) BroadcastNewDeal(deal types.Deal) {
	h.Broadcast(FrameNewDeal, deal)
}

// BroadcastMarketUpdate отправляет кадр market_update
func (h *Hub) BroadcastMarketUpdate(overview types.MarketOverview) {
	h.Broadcast(FrameMarketUpdate, overview)
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop закрывает все соединения
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.stopCh)
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	logger.Info("🛑 WS: хаб остановлен, закрыто соединений: %d", len(clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}
