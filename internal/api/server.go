// internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"gift-market-sniper/internal/types"
	"gift-market-sniper/internal/ws"
	"gift-market-sniper/pkg/logger"
)

// EventSink - приёмник сырых рыночных событий. Реализуется инжестором.
type EventSink interface {
	Ingest(event types.MarketEvent) error
}

// Server - HTTP-поверхность движка: приём событий, фид сделок,
// аналитика, сводка рынка, health и WebSocket-канал
type Server struct {
	service *Service
	hub     *ws.Hub
	sink    EventSink
	server  *http.Server
}

// NewServer создает HTTP-сервер. sink может быть nil - тогда
// приём событий по HTTP выключен.
func NewServer(addr string, service *Service, hub *ws.Hub, sink EventSink) *Server {
	s := &Server{
		service: service,
		hub:     hub,
		sink:    sink,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", s.handleIngest)
	mux.HandleFunc("/api/deals", s.handleDeals)
	mux.HandleFunc("/api/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/market/overview", s.handleOverview)
	mux.HandleFunc("/health", s.handleHealth)
	if hub != nil {
		mux.Handle("/ws", hub)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start запускает сервер в фоне
func (s *Server) Start() {
	logger.Info("🚀 HTTP API запущен на %s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("❌ HTTP сервер: %v", err)
		}
	}()
}

// Stop останавливает сервер
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// handleIngest обрабатывает POST /api/events: принимает сырое
// рыночное событие и отдает его конвейеру. Битое событие - 400,
// принятое - 202: обработка асинхронна.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sink == nil {
		http.Error(w, "Ingest is disabled", http.StatusServiceUnavailable)
		return
	}

	var event types.MarketEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := s.sink.Ingest(event); err != nil {
		if types.IsKind(err, types.ErrMalformedEvent) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Error("❌ Ошибка приёма события %s: %v", event.GiftID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "accepted"}); err != nil {
		logger.Error("❌ Ошибка сериализации ответа: %v", err)
	}
}

// handleAnalytics обрабатывает GET /api/analytics?asset_key=...
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	assetKey := r.URL.Query().Get("asset_key")
	if assetKey == "" {
		http.Error(w, "asset_key is required", http.StatusBadRequest)
		return
	}

	snapshot, err := s.service.GetAssetAnalytics(r.Context(), assetKey)
	if err != nil {
		switch {
		case types.IsKind(err, types.ErrUnknownAsset):
			http.Error(w, err.Error(), http.StatusNotFound)
		case types.IsKind(err, types.ErrStaleAnalytics):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logger.Error("❌ Ошибка выборки аналитики %s: %v", assetKey, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, snapshot)
}

// handleDeals обрабатывает GET /api/deals
func (s *Server) handleDeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	filter := DealsFilter{
		PriceMin:      parseFloatParam(q.Get("price_min")),
		PriceMax:      parseFloatParam(q.Get("price_max")),
		ProfitMin:     parseFloatParam(q.Get("profit_min")),
		BlackPackOnly: q.Get("black_pack") == "true",
		PriorityOnly:  q.Get("priority") == "true",
		Badge:         types.QualityBadge(q.Get("badge")),
	}

	order := SortOrder(q.Get("sort"))
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	feed, err := s.service.GetDeals(r.Context(), filter, order, page, pageSize)
	if err != nil {
		logger.Error("❌ Ошибка выборки фида: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, feed)
}

// handleOverview обрабатывает GET /api/market/overview
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	overview, err := s.service.GetMarketOverview(r.Context())
	if err != nil {
		logger.Error("❌ Ошибка сводки рынка: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, overview)
}

// handleHealth обрабатывает GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.hub != nil {
		status["ws_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("❌ Ошибка сериализации ответа: %v", err)
	}
}

func parseFloatParam(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
