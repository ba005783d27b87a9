// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-sniper/internal/analytics"
	"gift-market-sniper/internal/deals"
	"gift-market-sniper/internal/ingest"
	"gift-market-sniper/internal/storage"
	"gift-market-sniper/internal/types"
)

type serverFixture struct {
	ts       *httptest.Server
	ingestor *ingest.Ingestor
	cache    *storage.MemoryAnalyticsCache
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	events := storage.NewMemoryEventStore()
	listings := storage.NewMemoryListingStore()
	cache := storage.NewMemoryAnalyticsCache()

	ingestor := ingest.NewIngestor(
		ingest.Config{Shards: 4, BufferLen: 64},
		events, listings, cache,
		analytics.NewEngine(analytics.DefaultPolicy),
		deals.NewSynthesizer(),
		nil,
		nil,
	)
	ingestor.Start()

	service := NewService(events, cache, deals.NewSynthesizer(), ingestor, time.Minute)
	srv := NewServer(":0", service, nil, ingestor)

	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(func() {
		ts.Close()
		ingestor.Stop()
	})
	return &serverFixture{ts: ts, ingestor: ingestor, cache: cache}
}

func postEvent(t *testing.T, f *serverFixture, event types.MarketEvent) *http.Response {
	t.Helper()

	body, err := json.Marshal(event)
	require.NoError(t, err)

	resp, err := http.Post(f.ts.URL+"/api/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleIngest_AcceptsEventIntoPipeline(t *testing.T) {
	f := newServerFixture(t)

	resp := postEvent(t, f, types.MarketEvent{
		EventTime: time.Now().Add(-time.Minute),
		EventType: types.EventListing,
		GiftID:    "g1",
		Model:     "Santa Hat",
		Backdrop:  "Navy",
		Price:     10,
		Source:    types.SourceSwiftGifts,
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	// Принятое событие асинхронно доходит до кэша аналитики
	require.Eventually(t, func() bool {
		got, err := f.cache.Get(context.Background(), "Santa Hat:Navy")
		return err == nil && got != nil && got.ListingsCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleIngest_RejectsMalformedEvent(t *testing.T) {
	f := newServerFixture(t)

	resp := postEvent(t, f, types.MarketEvent{
		EventTime: time.Now(),
		EventType: types.EventListing,
		GiftID:    "g1",
		Model:     "Santa Hat",
		Price:     0, // цена обязана быть положительной
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleIngest_RejectsInvalidJSON(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Post(f.ts.URL+"/api/events", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleIngest_MethodNotAllowed(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleAnalytics_UnknownAssetIs404(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/api/analytics?asset_key=Santa%20Hat:Navy")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleAnalytics_ReturnsSnapshot(t *testing.T) {
	f := newServerFixture(t)

	resp := postEvent(t, f, types.MarketEvent{
		EventTime: time.Now().Add(-time.Minute),
		EventType: types.EventListing,
		GiftID:    "g1",
		Model:     "Santa Hat",
		Backdrop:  "Navy",
		Price:     10,
		Source:    types.SourceSwiftGifts,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		got, err := f.cache.Get(context.Background(), "Santa Hat:Navy")
		return err == nil && got != nil
	}, 2*time.Second, 10*time.Millisecond)

	analyticsResp, err := http.Get(f.ts.URL + "/api/analytics?asset_key=Santa%20Hat:Navy")
	require.NoError(t, err)
	defer analyticsResp.Body.Close()
	require.Equal(t, http.StatusOK, analyticsResp.StatusCode)

	var snapshot types.AssetAnalytics
	require.NoError(t, json.NewDecoder(analyticsResp.Body).Decode(&snapshot))
	assert.Equal(t, "Santa Hat:Navy", snapshot.AssetKey)
	assert.Equal(t, 1, snapshot.ListingsCount)
	require.NotNil(t, snapshot.Floor1st)
	assert.Equal(t, 10.0, *snapshot.Floor1st)
}
