// internal/ingest/ingestor.go
package ingest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"gift-market-sniper/internal/alerts"
	"gift-market-sniper/internal/analytics"
	"gift-market-sniper/internal/deals"
	"gift-market-sniper/internal/storage"
	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"
)

// Config - конфигурация инжестора
type Config struct {
	Shards     int           // количество воркеров-шардов по ключу актива
	BufferLen  int           // буфер очереди на шард
	LongWindow time.Duration // глубина выборки событий для пересчёта
}

// DefaultConfig - конфигурация по умолчанию
var DefaultConfig = Config{
	Shards:     16,
	BufferLen:  1024,
	LongWindow: 30 * 24 * time.Hour,
}

// Ingestor принимает сырой поток рыночных событий и прогоняет его
// через конвейер: дедуп → лоты → пересчёт аналитики → синтез дила →
// алерт-движок. События одного ключа актива сериализуются на одном
// шарде (single writer per key), разные ключи идут параллельно.
type Ingestor struct {
	config      Config
	events      storage.EventStore
	listings    storage.ListingStore
	cache       storage.AnalyticsCache
	analytics   *analytics.Engine
	synthesizer *deals.Synthesizer
	alertEngine *alerts.Engine
	bus         types.EventBus

	shards []chan types.MarketEvent
	// Пересчёт ключа сериализуется не только воркером шарда, но и
	// фоновым RecomputeAll с query-слоем: полосатые локи по тому же
	// маппингу ключ→шард исключают подмену свежего снапшота устаревшим
	keyLocks []sync.Mutex

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewIngestor создает инжестор
func NewIngestor(
	config Config,
	events storage.EventStore,
	listings storage.ListingStore,
	cache storage.AnalyticsCache,
	analyticsEngine *analytics.Engine,
	synthesizer *deals.Synthesizer,
	alertEngine *alerts.Engine,
	bus types.EventBus,
) *Ingestor {
	if config.Shards <= 0 {
		config.Shards = DefaultConfig.Shards
	}
	if config.BufferLen <= 0 {
		config.BufferLen = DefaultConfig.BufferLen
	}
	if config.LongWindow <= 0 {
		config.LongWindow = DefaultConfig.LongWindow
	}

	shards := make([]chan types.MarketEvent, config.Shards)
	for i := range shards {
		shards[i] = make(chan types.MarketEvent, config.BufferLen)
	}

	return &Ingestor{
		config:      config,
		events:      events,
		listings:    listings,
		cache:       cache,
		analytics:   analyticsEngine,
		synthesizer: synthesizer,
		alertEngine: alertEngine,
		bus:         bus,
		shards:      shards,
		keyLocks:    make([]sync.Mutex, config.Shards),
		stopCh:      make(chan struct{}),
	}
}

// Start запускает воркеры шардов
func (in *Ingestor) Start() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.running {
		return
	}
	in.running = true

	for i := range in.shards {
		in.wg.Add(1)
		go in.worker(in.shards[i])
	}
	logger.Info("🚀 Ingestor запущен: %d шардов по ключу актива", in.config.Shards)
}

// Stop останавливает воркеры и дожидается их завершения
func (in *Ingestor) Stop() {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return
	}
	in.running = false
	in.mu.Unlock()

	close(in.stopCh)
	in.wg.Wait()
	logger.Info("🛑 Ingestor остановлен")
}

// Ingest принимает одно событие. Безопасен для конкурентных вызовов.
// Битое событие логируется и отбрасывается с типизированной ошибкой,
// не прерывая поток.
func (in *Ingestor) Ingest(event types.MarketEvent) error {
	if err := event.Validate(); err != nil {
		logger.Warn("⚠️ Отброшено битое событие от %s: %v", event.Source, err)
		return err
	}

	shard := in.shards[shardIndex(event.AssetKey(), len(in.shards))]
	select {
	case shard <- event:
		return nil
	case <-in.stopCh:
		return fmt.Errorf("ingestor is stopped")
	}
}

// worker - единственный писатель для ключей своего шарда
func (in *Ingestor) worker(shard chan types.MarketEvent) {
	defer in.wg.Done()

	ctx := context.Background()
	for {
		select {
		case event := <-shard:
			in.process(ctx, &event)
		case <-in.stopCh:
			return
		}
	}
}

// process прогоняет событие по конвейеру целиком
func (in *Ingestor) process(ctx context.Context, event *types.MarketEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("⚠️ Паника в конвейере для %s: %v", event.AssetKey(), r)
		}
	}()

	now := time.Now()

	// Дедуп по идентичности: повтор уже учтён, пересчёт не нужен
	inserted, err := in.events.Append(ctx, *event)
	if err != nil {
		logger.Error("❌ Не удалось записать событие %s: %v", event.DedupKey(), err)
		return
	}
	if !inserted {
		logger.Debug("♻️ Повтор события %s, пропущен", event.DedupKey())
		return
	}

	// Поддержка зеркала актуальных лотов
	switch event.EventType {
	case types.EventListing, types.EventChangePrice:
		listing := types.ActiveListing{
			GiftID:      event.GiftID,
			GiftName:    event.GiftName,
			Model:       event.Model,
			Backdrop:    event.Backdrop,
			Pattern:     event.Pattern,
			Number:      event.Number,
			Price:       event.Price,
			ListedAt:    event.EventTime,
			LastUpdated: now,
			Source:      event.Source,
		}
		if err := in.listings.Upsert(ctx, listing); err != nil {
			logger.Error("❌ Не удалось обновить лот %s: %v", event.GiftID, err)
		}
	case types.EventBuy:
		if err := in.listings.Remove(ctx, event.GiftID); err != nil {
			logger.Error("❌ Не удалось снять лот %s: %v", event.GiftID, err)
		}
	}

	assetKey := event.AssetKey()
	snapshot := in.recomputeKey(ctx, assetKey, now)

	// Buy меняет аналитику, но сам по себе не является дилом
	if event.EventType == types.EventBuy {
		return
	}

	deal := in.synthesizer.Synthesize(event, snapshot, now)
	if in.bus != nil {
		in.bus.Publish(types.Event{
			Type:   types.BusDealSynthesized,
			Source: "ingestor",
			Data:   deal,
		})
	}

	if in.alertEngine != nil {
		in.alertEngine.EvaluateBatch(ctx, []types.Deal{deal}, now)
	}
}

// RefreshKey синхронно пересчитывает аналитику одного ключа и
// возвращает свежий снапшот. Используется query-слоем, когда запись
// кэша старше порога свежести.
func (in *Ingestor) RefreshKey(ctx context.Context, assetKey string) *types.AssetAnalytics {
	return in.recomputeKey(ctx, assetKey, time.Now())
}

// recomputeKey пересчитывает аналитику ключа и атомарно подменяет
// запись кэша целиком. Лок ключа держится от чтения лотов до записи
// кэша: конкурентный пересчёт того же ключа не может подменить более
// свежий снапшот своим устаревшим.
func (in *Ingestor) recomputeKey(ctx context.Context, assetKey string, now time.Time) *types.AssetAnalytics {
	lock := &in.keyLocks[shardIndex(assetKey, len(in.keyLocks))]
	lock.Lock()
	defer lock.Unlock()

	listings, err := in.listings.ByAssetKey(ctx, assetKey)
	if err != nil {
		logger.Error("❌ Не удалось прочитать лоты %s: %v", assetKey, err)
		listings = nil
	}

	// Глубина: длинное окно плюс запас на тренд предыдущего периода
	since := now.Add(-in.config.LongWindow)
	recentEvents, err := in.events.ByAssetKeySince(ctx, assetKey, since)
	if err != nil {
		logger.Error("❌ Не удалось прочитать события %s: %v", assetKey, err)
		recentEvents = nil
	}

	snapshot := in.analytics.Recompute(assetKey, now, listings, recentEvents)

	if err := in.cache.Put(ctx, snapshot); err != nil {
		logger.Error("❌ Не удалось обновить кэш аналитики %s: %v", assetKey, err)
	}

	if in.bus != nil {
		in.bus.Publish(types.Event{
			Type:   types.BusAnalyticsUpdated,
			Source: "ingestor",
			Data:   snapshot,
		})
	}
	return snapshot
}

// RecomputeAll пересчитывает аналитику всех известных ключей.
// Прерываемо между ключами: отмена контекста никогда не оставляет
// ключ обновлённым наполовину.
func (in *Ingestor) RecomputeAll(ctx context.Context) error {
	keys, err := in.listings.AssetKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list asset keys: %w", err)
	}

	cached, err := in.cache.Keys(ctx)
	if err == nil {
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			seen[k] = true
		}
		for _, k := range cached {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
	}

	for _, assetKey := range keys {
		if err := ctx.Err(); err != nil {
			logger.Warn("⚠️ Полный пересчёт прерван: %v", err)
			return err
		}
		in.recomputeKey(ctx, assetKey, time.Now())
	}

	logger.Info("🔄 Полный пересчёт завершен: %d ключей", len(keys))
	return nil
}

// shardIndex - стабильный маппинг ключа актива на шард
func shardIndex(assetKey string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(assetKey))
	return int(h.Sum32() % uint32(shards))
}
