// internal/alerts/engine.go
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gift-market-sniper/internal/storage"
	"gift-market-sniper/internal/types"
	"gift-market-sniper/pkg/logger"

	"github.com/google/uuid"
)

// Policy - настраиваемые параметры алерт-движка
type Policy struct {
	CooldownWindow         time.Duration // минимум между алертами пары (user, asset)
	EscalationMarginPct    float64       // превышение профита для досрочного алерта
	MaxAlertsPerBatch      int           // кап алертов на пользователя за батч
	StaleListingAge        time.Duration // листинги старше отбрасываются
	MaxPriceChangesPerHour int           // порог манипуляции ценой
	MaxDeferredPerUser     int           // предел отложенной очереди
}

// DefaultPolicy - параметры по умолчанию
var DefaultPolicy = Policy{
	CooldownWindow:         15 * time.Minute,
	EscalationMarginPct:    10.0,
	MaxAlertsPerBatch:      5,
	StaleListingAge:        6 * time.Hour,
	MaxPriceChangesPerHour: 3,
	MaxDeferredPerUser:     50,
}

// Dispatcher - получатель готовых решений (нотификаторы, push-поверхность)
type Dispatcher interface {
	Dispatch(decision types.AlertDecision) error
}

// Engine оценивает дилы против фильтров всех активных пользователей,
// применяет мьюты, кулдауны и ранжирование и выдаёт AlertDecision.
type Engine struct {
	policy      Policy
	users       storage.UserStore
	sentAlerts  storage.SentAlertStore
	rateLimiter storage.RateLimiter
	events      storage.EventStore
	dispatcher  Dispatcher
	bus         types.EventBus

	// Отложенные кандидаты: переполнение капа батча не теряется,
	// а переоценивается в следующем батче
	deferredMu sync.Mutex
	deferred   map[int64][]types.Deal
}

// NewEngine создает алерт-движок
func NewEngine(
	policy Policy,
	users storage.UserStore,
	sentAlerts storage.SentAlertStore,
	rateLimiter storage.RateLimiter,
	events storage.EventStore,
	dispatcher Dispatcher,
	bus types.EventBus,
) *Engine {
	if policy.MaxAlertsPerBatch <= 0 {
		policy.MaxAlertsPerBatch = DefaultPolicy.MaxAlertsPerBatch
	}
	if policy.CooldownWindow <= 0 {
		policy.CooldownWindow = DefaultPolicy.CooldownWindow
	}
	if policy.MaxDeferredPerUser <= 0 {
		policy.MaxDeferredPerUser = DefaultPolicy.MaxDeferredPerUser
	}
	return &Engine{
		policy:      policy,
		users:       users,
		sentAlerts:  sentAlerts,
		rateLimiter: rateLimiter,
		events:      events,
		dispatcher:  dispatcher,
		bus:         bus,
		deferred:    make(map[int64][]types.Deal),
	}
}

// EvaluateBatch прогоняет батч дилов по всем активным пользователям.
// Пользователи оцениваются параллельно; линейность записи SentAlert
// гарантирует хранилище. Ошибка по одному пользователю или дилу
// никогда не прерывает оценку остальных.
func (e *Engine) EvaluateBatch(ctx context.Context, dealBatch []types.Deal, now time.Time) []types.AlertDecision {
	users, err := e.users.ActiveUsers(ctx)
	if err != nil {
		logger.Error("❌ Не удалось получить активных пользователей: %v", err)
		return nil
	}
	if len(users) == 0 {
		return nil
	}

	var mu sync.Mutex
	var decisions []types.AlertDecision
	var wg sync.WaitGroup

	for i := range users {
		settings := users[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			userDecisions := e.evaluateForUser(ctx, settings, dealBatch, now)
			if len(userDecisions) > 0 {
				mu.Lock()
				decisions = append(decisions, userDecisions...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return decisions
}

// evaluateForUser оценивает дилы одного пользователя: фильтры,
// ранжирование, кап батча, эмиссия
func (e *Engine) evaluateForUser(ctx context.Context, settings types.UserSettings, dealBatch []types.Deal, now time.Time) []types.AlertDecision {
	// Отложенные с прошлого батча идут первыми
	candidates := append(e.takeDeferred(settings.UserID), dealBatch...)

	var eligible []types.Deal
	for i := range candidates {
		deal := candidates[i]
		ok, reason := e.evaluate(ctx, &settings, &deal, now)
		if !ok {
			logger.Debug("🚫 user=%d %s отклонён: %s", settings.UserID, deal.AssetKey, reason)
			continue
		}
		eligible = append(eligible, deal)
	}

	if len(eligible) == 0 {
		return nil
	}

	RankDeals(eligible)

	// Кап на батч: лишние кандидаты откладываются, не теряются
	emit := eligible
	if len(emit) > e.policy.MaxAlertsPerBatch {
		e.defer_(settings.UserID, emit[e.policy.MaxAlertsPerBatch:])
		emit = emit[:e.policy.MaxAlertsPerBatch]
	}

	var decisions []types.AlertDecision
	for i := range emit {
		decision, ok := e.emit(ctx, &settings, &emit[i], now)
		if ok {
			decisions = append(decisions, decision)
		}
	}
	return decisions
}

// evaluate - стадии 1-4 конвейера, каждая отсекает кандидата
func (e *Engine) evaluate(ctx context.Context, settings *types.UserSettings, deal *types.Deal, now time.Time) (bool, string) {
	// Битый дил: пропускаем только для этого пользователя,
	// оценка остальных продолжается
	if deal.Price <= 0 || deal.AssetKey == "" {
		logger.Warn("⚠️ Битый дил пропущен: asset=%q price=%f", deal.AssetKey, deal.Price)
		return false, "malformed"
	}

	// 1. Пользователь активен
	if !settings.Active {
		return false, "inactive"
	}

	// 2. Мьют: просроченные записи считаются отсутствующими
	mutedUntil, err := e.users.MutedUntil(ctx, settings.UserID, deal.AssetKey)
	if err != nil {
		// При сомнении не алертим
		logger.Error("❌ Ошибка проверки мьюта user=%d: %v", settings.UserID, err)
		return false, "mute_check_failed"
	}
	if mutedUntil != nil && mutedUntil.After(now) {
		return false, "muted"
	}

	// 3. Фильтры пользователя
	if ok, reason := e.passesFilters(ctx, settings, deal, now); !ok {
		return false, reason
	}

	// 4. Кулдаун с эскалационным исключением
	if ok, reason := e.passesCooldown(ctx, settings.UserID, deal, now); !ok {
		return false, reason
	}

	return true, ""
}

// passesFilters проверяет дил против настроек пользователя и
// анти-false-positive ворот
func (e *Engine) passesFilters(ctx context.Context, settings *types.UserSettings, deal *types.Deal, now time.Time) (bool, string) {
	// Диапазон цены
	if settings.PriceMin != nil && deal.Price < *settings.PriceMin {
		return false, "price_below_min"
	}
	if settings.PriceMax != nil && deal.Price > *settings.PriceMax {
		return false, "price_above_max"
	}

	// Фильтр по фону
	switch settings.BackgroundFilter {
	case types.BackgroundNone:
		if deal.Backdrop != "" {
			return false, "has_backdrop"
		}
	case types.BackgroundBlackPack:
		if !deal.IsBlackPack {
			return false, "not_black_pack"
		}
	}

	// Только чистые: без паттерна
	if settings.CleanOnly && deal.Pattern != "" {
		return false, "not_clean"
	}

	// Границы редкости проверяются только при наличии номера
	if deal.Number != nil {
		if settings.RarityMin != nil && *deal.Number < *settings.RarityMin {
			return false, "rarity_below_min"
		}
		if settings.RarityMax != nil && *deal.Number > *settings.RarityMax {
			return false, "rarity_above_max"
		}
	}

	// Порог профита: вотчлист переопределяет дефолт пользователя
	profit, hasProfit := deal.Profit()
	if !hasProfit {
		return false, "no_reference_price"
	}

	minProfit := settings.ProfitMin
	watchlistThreshold, err := e.users.WatchlistThreshold(ctx, settings.UserID, deal.AssetKey)
	if err != nil {
		logger.Error("❌ Ошибка чтения вотчлиста user=%d: %v", settings.UserID, err)
	} else if watchlistThreshold != nil {
		minProfit = *watchlistThreshold
	}

	// Штраф за неликвидность: требуем больший дисконт
	if deal.LiquidityScore < 5 {
		minProfit *= 1.2
	}

	if profit < minProfit {
		return false, fmt.Sprintf("profit %.1f%% below %.1f%%", profit, minProfit)
	}

	// Анти-false-positive ворота
	if ok, reason := e.passesQualityGates(ctx, deal, profit, now); !ok {
		return false, reason
	}

	// Режим снайпера строже к слабой аналитике
	if settings.Mode == types.ModeSniper {
		switch deal.ConfidenceLevel {
		case types.ConfidenceLow:
			if profit < 30 {
				return false, "sniper_low_confidence"
			}
		case types.ConfidenceMedium:
			if profit < 20 {
				return false, "sniper_medium_confidence"
			}
		default:
			if profit < 15 && deal.Hotness < 8 {
				return false, "sniper_weak_deal"
			}
		}
	}

	return true, ""
}

// passesQualityGates - защита от ложных срабатываний на мусорной аналитике
func (e *Engine) passesQualityGates(ctx context.Context, deal *types.Deal, profit float64, now time.Time) (bool, string) {
	// Единственный лот + low confidence: профит должен компенсировать
	// неопределённость
	if deal.ListingsCount == 1 && deal.ConfidenceLevel == types.ConfidenceLow && profit < 50 {
		return false, "single_listing_low_confidence"
	}

	// Почти неликвид + low confidence
	if deal.LiquidityScore < 2 && deal.ConfidenceLevel == types.ConfidenceLow && profit < 35 {
		return false, "illiquid_low_confidence"
	}

	// Слишком хорошо, чтобы быть правдой
	if profit > 70 && deal.LiquidityScore < 4 {
		return false, "too_good_to_be_true"
	}

	// Протухший листинг
	if deal.EventType == types.EventListing && now.Sub(deal.EventTime) > e.policy.StaleListingAge {
		return false, "stale_listing"
	}

	// Частые смены цены - похоже на манипуляцию
	if deal.EventType == types.EventChangePrice && e.events != nil {
		changes, err := e.events.CountByTypeSince(ctx, deal.AssetKey, types.EventChangePrice, now.Add(-time.Hour))
		if err == nil && changes >= e.policy.MaxPriceChangesPerHour {
			return false, "price_manipulation"
		}
	}

	return true, ""
}

// passesCooldown проверяет окно кулдауна пары (user, asset).
// Улучшившийся дил может алертить досрочно, если профит превышает
// предыдущий на эскалационную маржу.
func (e *Engine) passesCooldown(ctx context.Context, userID int64, deal *types.Deal, now time.Time) (bool, string) {
	latest, err := e.sentAlerts.Latest(ctx, userID, deal.AssetKey)
	if err != nil {
		logger.Error("❌ Ошибка чтения журнала алертов user=%d: %v", userID, err)
		return false, "cooldown_check_failed"
	}
	if latest == nil {
		return true, ""
	}

	if now.Sub(latest.SentAt) >= e.policy.CooldownWindow {
		return true, ""
	}

	profit, _ := deal.Profit()
	if profit >= latest.ProfitPct+e.policy.EscalationMarginPct {
		return true, "escalation"
	}
	return false, "cooldown"
}

// emit фиксирует SentAlert и выпускает решение. Конфликт записи
// повторяется один раз, затем трактуется как no-op: лучше пропустить
// алерт, чем прислать его дважды.
func (e *Engine) emit(ctx context.Context, settings *types.UserSettings, deal *types.Deal, now time.Time) (types.AlertDecision, bool) {
	allowed, err := e.rateLimiter.Allow(ctx, settings.UserID)
	if err != nil {
		logger.Error("❌ Ошибка рейт-лимитера user=%d: %v", settings.UserID, err)
		return types.AlertDecision{}, false
	}
	if !allowed {
		logger.Warn("⏳ Пользователь %d превысил часовой лимит алертов", settings.UserID)
		return types.AlertDecision{}, false
	}

	profit, _ := deal.Profit()
	record := types.SentAlert{
		ID:        uuid.New().String(),
		UserID:    settings.UserID,
		AssetKey:  deal.AssetKey,
		EventID:   deal.EventID,
		ProfitPct: profit,
		SentAt:    now,
	}

	inserted, err := e.sentAlerts.AppendIfAllowed(ctx, record, e.policy.CooldownWindow, e.policy.EscalationMarginPct)
	if err != nil {
		// Один повтор с перечитыванием состояния кулдауна
		inserted, err = e.sentAlerts.AppendIfAllowed(ctx, record, e.policy.CooldownWindow, e.policy.EscalationMarginPct)
		if err != nil {
			conflict := types.NewEngineError(types.ErrConcurrentWriteConflict,
				fmt.Sprintf("запись SentAlert user=%d asset=%s не прошла после повтора", settings.UserID, deal.AssetKey), err)
			logger.Error("❌ %v", conflict)
			if e.bus != nil {
				e.bus.Publish(types.Event{
					Type:   types.BusError,
					Source: "alert_engine",
					Data:   conflict,
				})
			}
			return types.AlertDecision{}, false
		}
	}
	if !inserted {
		// Конкурентная оценка успела раньше
		return types.AlertDecision{}, false
	}

	decision := types.AlertDecision{
		ID:        record.ID,
		UserID:    settings.UserID,
		Deal:      *deal,
		Reason:    decisionReason(deal),
		CreatedAt: now,
	}

	logger.Alert(settings.UserID, deal.AssetKey, profit, deal.Hotness, string(deal.QualityBadge))

	if e.dispatcher != nil {
		if err := e.dispatcher.Dispatch(decision); err != nil {
			logger.Warn("⚠️ Ошибка доставки алерта user=%d %s: %v",
				settings.UserID, deal.AssetKey, err)
		}
	}
	if e.bus != nil {
		e.bus.Publish(types.Event{
			Type:   types.BusAlertDecision,
			Source: "alert_engine",
			Data:   decision,
		})
	}

	return decision, true
}

// takeDeferred забирает отложенную очередь пользователя
func (e *Engine) takeDeferred(userID int64) []types.Deal {
	e.deferredMu.Lock()
	defer e.deferredMu.Unlock()

	queued := e.deferred[userID]
	delete(e.deferred, userID)
	return queued
}

// defer_ откладывает кандидатов до следующего батча
func (e *Engine) defer_(userID int64, overflow []types.Deal) {
	e.deferredMu.Lock()
	defer e.deferredMu.Unlock()

	queued := append(e.deferred[userID], overflow...)
	if len(queued) > e.policy.MaxDeferredPerUser {
		queued = queued[len(queued)-e.policy.MaxDeferredPerUser:]
	}
	e.deferred[userID] = queued
}

// decisionReason - человекочитаемое объяснение для downstream-слоёв
func decisionReason(deal *types.Deal) string {
	profit, _ := deal.Profit()
	switch deal.QualityBadge {
	case types.BadgeBlackPack:
		return fmt.Sprintf("black pack, profit %.1f%%", profit)
	case types.BadgeGem:
		return fmt.Sprintf("gem: profit %.1f%% with %s confidence", profit, deal.ConfidenceLevel)
	case types.BadgeSniper:
		return fmt.Sprintf("sniper entry: profit %.1f%%", profit)
	case types.BadgeHot:
		return fmt.Sprintf("hot asset: hotness %.1f/10", deal.Hotness)
	default:
		return fmt.Sprintf("profit %.1f%% above threshold", profit)
	}
}
