// internal/infrastructure/persistence/postgres/repository/events/repository.go
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gift-market-sniper/internal/types"
)

// Repository - Postgres-реализация append-only журнала рыночных событий.
// Дедупликацию повторов выполняет уникальный индекс по
// (event_time, gift_id, event_type): ON CONFLICT DO NOTHING.
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает репозиторий событий
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Append вставляет событие, если его ещё не было.
// Возвращает false без ошибки для повтора.
func (r *Repository) Append(ctx context.Context, event types.MarketEvent) (bool, error) {
	query := `
	INSERT INTO market_events (
		event_type, event_time, gift_id, gift_name,
		model, backdrop, pattern, number,
		price, price_old, photo_url, source, marketplace, raw_payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (event_time, gift_id, event_type) DO NOTHING
	`

	marketplace := event.Marketplace
	if marketplace == "" {
		marketplace = types.MarketplaceUnknown
	}

	res, err := r.db.ExecContext(ctx, query,
		event.EventType, event.EventTime, event.GiftID, event.GiftName,
		event.Model, event.Backdrop, event.Pattern, event.Number,
		event.Price, event.PriceOld, event.PhotoURL, event.Source,
		marketplace, []byte(event.RawPayload),
	)
	if err != nil {
		return false, fmt.Errorf("ошибка записи события %s: %w", event.DedupKey(), err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки вставки события: %w", err)
	}
	return affected > 0, nil
}

// ByAssetKeySince возвращает события актива начиная с момента since
func (r *Repository) ByAssetKeySince(ctx context.Context, assetKey string, since time.Time) ([]types.MarketEvent, error) {
	model, backdrop, number, err := types.ParseAssetKey(assetKey)
	if err != nil {
		return nil, err
	}

	// Ключ без номера покрывает только события без номера:
	// нумерованные варианты живут под собственными ключами
	query := `
	SELECT event_type, event_time, gift_id, gift_name,
	       model, backdrop, pattern, number,
	       price, price_old, photo_url, source, marketplace, raw_payload
	FROM market_events
	WHERE model = $1 AND backdrop = $2 AND number IS NULL AND event_time >= $3
	ORDER BY event_time ASC
	`
	args := []interface{}{model, backdrop, since}
	if number != nil {
		query = `
		SELECT event_type, event_time, gift_id, gift_name,
		       model, backdrop, pattern, number,
		       price, price_old, photo_url, source, marketplace, raw_payload
		FROM market_events
		WHERE model = $1 AND backdrop = $2 AND number = $4 AND event_time >= $3
		ORDER BY event_time ASC
		`
		args = append(args, *number)
	}

	return r.scanEvents(ctx, query, args...)
}

// CountByTypeSince считает события актива данного типа с момента since
func (r *Repository) CountByTypeSince(ctx context.Context, assetKey string, eventType types.EventType, since time.Time) (int, error) {
	model, backdrop, number, err := types.ParseAssetKey(assetKey)
	if err != nil {
		return 0, err
	}

	query := `
	SELECT COUNT(*)
	FROM market_events
	WHERE model = $1 AND backdrop = $2 AND event_type = $3 AND event_time >= $4
	`
	args := []interface{}{model, backdrop, eventType, since}
	if number != nil {
		query += ` AND number = $5`
		args = append(args, *number)
	} else {
		query += ` AND number IS NULL`
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("ошибка подсчета событий %s: %w", assetKey, err)
	}
	return count, nil
}

// RecentMarketEvents возвращает listing/change_price события
// для фида сделок, новые первыми
func (r *Repository) RecentMarketEvents(ctx context.Context, since time.Time, limit int) ([]types.MarketEvent, error) {
	query := `
	SELECT event_type, event_time, gift_id, gift_name,
	       model, backdrop, pattern, number,
	       price, price_old, photo_url, source, marketplace, raw_payload
	FROM market_events
	WHERE event_type IN ('listing', 'change_price') AND event_time >= $1
	ORDER BY event_time DESC
	LIMIT $2
	`
	return r.scanEvents(ctx, query, since, limit)
}

func (r *Repository) scanEvents(ctx context.Context, query string, args ...interface{}) ([]types.MarketEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки событий: %w", err)
	}
	defer rows.Close()

	var events []types.MarketEvent
	for rows.Next() {
		var e types.MarketEvent
		var rawPayload []byte
		if err := rows.Scan(
			&e.EventType, &e.EventTime, &e.GiftID, &e.GiftName,
			&e.Model, &e.Backdrop, &e.Pattern, &e.Number,
			&e.Price, &e.PriceOld, &e.PhotoURL, &e.Source,
			&e.Marketplace, &rawPayload,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения события: %w", err)
		}
		e.RawPayload = rawPayload
		events = append(events, e)
	}
	return events, rows.Err()
}
