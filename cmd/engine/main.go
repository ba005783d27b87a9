// cmd/engine/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"gift-market-sniper/internal/alerts"
	"gift-market-sniper/internal/analytics"
	"gift-market-sniper/internal/api"
	"gift-market-sniper/internal/config"
	"gift-market-sniper/internal/deals"
	"gift-market-sniper/internal/events"
	rediscache "gift-market-sniper/internal/infrastructure/cache/redis"
	"gift-market-sniper/internal/infrastructure/persistence/postgres"
	alertsrepo "gift-market-sniper/internal/infrastructure/persistence/postgres/repository/alerts"
	eventsrepo "gift-market-sniper/internal/infrastructure/persistence/postgres/repository/events"
	listingsrepo "gift-market-sniper/internal/infrastructure/persistence/postgres/repository/listings"
	usersrepo "gift-market-sniper/internal/infrastructure/persistence/postgres/repository/users"
	"gift-market-sniper/internal/ingest"
	"gift-market-sniper/internal/notifier"
	"gift-market-sniper/internal/storage"
	"gift-market-sniper/internal/types"
	"gift-market-sniper/internal/ws"
	"gift-market-sniper/pkg/logger"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Некорректная конфигурация: %v", err)
	}

	if err := logger.InitGlobal(cfg.LogFile, cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}

	printHeader("GIFT MARKET SNIPER - АНАЛИТИКА И АЛЕРТЫ")
	fmt.Printf("🔧 Конфигурация:\n")
	fmt.Printf("   Хранилище: %s\n", cfg.StorageBackend)
	fmt.Printf("   Шардов инжеста: %d\n", cfg.WorkerShards)
	fmt.Printf("   Окна продаж: %s / %s\n", cfg.SalesWindowShort, cfg.SalesWindowLong)
	fmt.Printf("   Кулдаун алертов: %s (+%.0f%% эскалация)\n", cfg.CooldownWindow, cfg.EscalationMarginPct)
	fmt.Printf("   Лимит алертов: %d за батч, %d в час\n", cfg.MaxAlertsPerBatch, cfg.MaxAlertsPerHour)
	fmt.Println()

	startTime := time.Now()

	// Шина событий
	bus := events.NewEventBus()
	bus.AddMiddleware(&events.LoggingMiddleware{SlowThreshold: 100 * time.Millisecond})
	bus.AddMiddleware(events.NewThrottlingMiddleware(map[types.BusEventType]time.Duration{
		types.BusMarketUpdate: 2 * time.Second,
	}))
	bus.Subscribe(types.BusError, events.NewErrorLoggerSubscriber())
	bus.Start()

	// Хранилища
	var (
		eventStore   storage.EventStore
		listingStore storage.ListingStore
		cache        storage.AnalyticsCache
		userStore    storage.UserStore
		sentAlerts   storage.SentAlertStore
		rateLimiter  storage.RateLimiter
	)

	var redisService *rediscache.RedisService

	switch cfg.StorageBackend {
	case "postgres":
		db, err := postgres.Connect(&postgres.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
			MaxConns: cfg.DBMaxConns,
			MaxIdle:  cfg.DBMaxIdle,
		})
		if err != nil {
			log.Fatalf("Не удалось подключиться к Postgres: %v", err)
		}

		redisService = rediscache.NewRedisService(cfg)
		if err := redisService.Start(); err != nil {
			log.Fatalf("Не удалось подключиться к Redis: %v", err)
		}
		redisCache := redisService.GetCache()

		eventStore = eventsrepo.NewRepository(db)
		listingStore = listingsrepo.NewRepository(db)
		userStore = usersrepo.NewRepository(db)
		sentAlerts = alertsrepo.NewRepository(db)
		cache = rediscache.NewAnalyticsCache(redisCache, cfg.AnalyticsCacheTTL)
		rateLimiter = rediscache.NewRateLimiter(redisCache, cfg.MaxAlertsPerHour, time.Hour)
	default:
		eventStore = storage.NewMemoryEventStore(cfg.DedupCapacity)
		listingStore = storage.NewMemoryListingStore()
		userStore = storage.NewMemoryUserStore()
		sentAlerts = storage.NewMemorySentAlertStore()
		cache = storage.NewMemoryAnalyticsCache()
		rateLimiter = storage.NewMemoryRateLimiter(cfg.MaxAlertsPerHour)
	}

	// Ядро: аналитика и синтез дилов
	analyticsEngine := analytics.NewEngine(analytics.Policy{
		ConfidenceSalesN:  cfg.ConfidenceSalesN,
		TrendThresholdPct: cfg.TrendThresholdPct,
		ShortWindow:       cfg.SalesWindowShort,
		LongWindow:        cfg.SalesWindowLong,
	})
	synthesizer := deals.NewSynthesizer()

	// Push-поверхность
	var hub *ws.Hub
	if cfg.WSEnabled {
		hub = ws.NewHub()
		bus.Subscribe(types.BusDealSynthesized, events.NewBaseSubscriber(
			"ws_deal_broadcaster",
			[]types.BusEventType{types.BusDealSynthesized},
			func(event types.Event) error {
				deal, ok := event.Data.(types.Deal)
				if !ok {
					return nil
				}
				if deal.QualityBadge != types.BadgeNone || deal.IsPriority {
					hub.BroadcastNewDeal(deal)
				}
				return nil
			},
		))
	}

	// Нотификаторы
	dispatcher := notifier.NewCompositeNotificationService()
	dispatcher.AddNotifier(notifier.NewConsoleNotifier(true))
	if hub != nil {
		dispatcher.AddNotifier(notifier.NewWSNotifier(hub))
	}

	// Алерт-движок
	alertEngine := alerts.NewEngine(alerts.Policy{
		CooldownWindow:         cfg.CooldownWindow,
		EscalationMarginPct:    cfg.EscalationMarginPct,
		MaxAlertsPerBatch:      cfg.MaxAlertsPerBatch,
		StaleListingAge:        cfg.StaleListingAge,
		MaxPriceChangesPerHour: cfg.MaxPriceChangesPerH,
		MaxDeferredPerUser:     alerts.DefaultPolicy.MaxDeferredPerUser,
	}, userStore, sentAlerts, rateLimiter, eventStore, dispatcher, bus)

	// Конвейер инжеста
	ingestor := ingest.NewIngestor(ingest.Config{
		Shards:     cfg.WorkerShards,
		BufferLen:  cfg.IngestBufferLen,
		LongWindow: cfg.SalesWindowLong,
	}, eventStore, listingStore, cache, analyticsEngine, synthesizer, alertEngine, bus)
	ingestor.Start()

	// Query-поверхность
	apiService := api.NewService(eventStore, cache, synthesizer, ingestor, cfg.StaleAfter)
	var apiServer *api.Server
	if cfg.HttpEnabled {
		apiServer = api.NewServer(cfg.HttpPort, apiService, hub, ingestor)
		apiServer.Start()
		fmt.Printf("🌐 API доступен по адресу: http://localhost%s\n", cfg.HttpPort)
		fmt.Println()
	}

	// Периодическая сводка рынка в push-канал
	overviewStop := make(chan struct{})
	if hub != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					overview, err := apiService.GetMarketOverview(ctx)
					cancel()
					if err != nil {
						logger.Warn("⚠️ Не удалось собрать сводку рынка: %v", err)
						continue
					}
					hub.BroadcastMarketUpdate(*overview)
					bus.Publish(types.Event{
						Type:   types.BusMarketUpdate,
						Source: "overview_broadcaster",
						Data:   *overview,
					})
				case <-overviewStop:
					return
				}
			}
		}()
	}

	// Периодический полный пересчёт аналитики
	recomputeCtx, recomputeCancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := ingestor.RecomputeAll(recomputeCtx); err != nil {
					return
				}
			case <-recomputeCtx.Done():
				return
			}
		}
	}()

	// Горутина для периодического вывода статистики
	statsStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				printStats(startTime, hub, dispatcher)
			case <-statsStop:
				return
			}
		}
	}()

	fmt.Println("🎮 Управление:")
	fmt.Println("   Ctrl+C - Остановить движок")
	printSeparator()

	// Ожидание сигнала остановки
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-stopChan

	fmt.Println()
	printHeader("Завершение работы")
	fmt.Printf("⏱️  Время работы: %s\n", formatDuration(time.Since(startTime)))

	// Остановка в обратном порядке запуска
	close(statsStop)
	close(overviewStop)
	recomputeCancel()
	if apiServer != nil {
		apiServer.Stop()
	}
	ingestor.Stop()
	if hub != nil {
		hub.Stop()
	}
	bus.Stop()
	if redisService != nil {
		redisService.Stop()
	}

	fmt.Println("✅ Движок остановлен корректно")
}

func printStats(startTime time.Time, hub *ws.Hub, dispatcher *notifier.CompositeNotificationService) {
	fmt.Println(strings.Repeat("─", 80))
	fmt.Printf("📊 СТАТУС СИСТЕМЫ\n")
	fmt.Printf("   ⏱️  Время работы: %s\n", formatDuration(time.Since(startTime)))
	if hub != nil {
		fmt.Printf("   🔌 WS-клиентов: %d\n", hub.ClientCount())
	}

	stats := dispatcher.GetStats()
	fmt.Printf("   🔔 Алертов отправлено: %v (ошибок: %v)\n",
		stats["total_sent"], stats["failed"])

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("   💾 Память: %.2f MB\n", float64(m.Alloc)/1024/1024)
	fmt.Printf("   🧵 Горутин: %d\n", runtime.NumGoroutine())
	fmt.Println(strings.Repeat("─", 80))
}

func printHeader(text string) {
	width := 80
	padding := (width - len(text)) / 2

	if padding < 0 {
		padding = 0
	}

	fmt.Println(strings.Repeat("═", width))
	fmt.Printf("%s%s%s\n",
		strings.Repeat(" ", padding),
		text,
		strings.Repeat(" ", width-len(text)-padding))
	fmt.Println(strings.Repeat("═", width))
}

func printSeparator() {
	fmt.Println(strings.Repeat("─", 80))
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}
