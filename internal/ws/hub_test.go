// internal/ws/hub_test.go
package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-sniper/internal/types"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_BroadcastNewDeal(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()
	conn := dialHub(t, hub)

	profit := 30.0
	hub.BroadcastNewDeal(types.Deal{
		AssetKey:  "Santa Hat:Navy",
		GiftID:    "g1",
		Price:     7,
		ProfitPct: &profit,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var frame struct {
		Type      string     `json:"type"`
		Data      types.Deal `json:"data"`
		Timestamp time.Time  `json:"timestamp"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &frame))

	assert.Equal(t, FrameNewDeal, frame.Type)
	assert.Equal(t, "Santa Hat:Navy", frame.Data.AssetKey)
	assert.False(t, frame.Timestamp.IsZero())
}

func TestHub_PingPong(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()
	conn := dialHub(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, conn, Frame{Type: FramePing, Timestamp: time.Now()}))

	var frame Frame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FramePong, frame.Type)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var frame Frame
	err := wsjson.Read(ctx, conn, &frame)
	assert.Error(t, err)
}

func TestFrame_WireShape(t *testing.T) {
	raw, err := json.Marshal(Frame{
		Type:      FrameMarketUpdate,
		Data:      types.MarketOverview{ActiveDeals: 3},
		Timestamp: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "type")
	assert.Contains(t, decoded, "data")
	assert.Contains(t, decoded, "timestamp")

	// Пустая нагрузка опускается из кадра
	raw, err = json.Marshal(Frame{Type: FramePing, Timestamp: time.Now()})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
}
