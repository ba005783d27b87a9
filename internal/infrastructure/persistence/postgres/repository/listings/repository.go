// internal/infrastructure/persistence/postgres/repository/listings/repository.go
package listings

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gift-market-sniper/internal/types"
)

// Repository - Postgres-реализация зеркала актуальных лотов.
// Лот уникален по gift_id; повторный апсерт обновляет цену,
// но сохраняет исходный listed_at для тай-брейка флоров.
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает репозиторий лотов
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert вставляет или обновляет лот
func (r *Repository) Upsert(ctx context.Context, listing types.ActiveListing) error {
	query := `
	INSERT INTO active_listings (
		gift_id, gift_name, model, backdrop, pattern, number,
		price, listed_at, last_updated, source
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (gift_id) DO UPDATE SET
		gift_name = EXCLUDED.gift_name,
		price = EXCLUDED.price,
		last_updated = EXCLUDED.last_updated,
		source = EXCLUDED.source
	`

	if _, err := r.db.ExecContext(ctx, query,
		listing.GiftID, listing.GiftName, listing.Model, listing.Backdrop,
		listing.Pattern, listing.Number, listing.Price,
		listing.ListedAt, listing.LastUpdated, listing.Source,
	); err != nil {
		return fmt.Errorf("ошибка апсерта лота %s: %w", listing.GiftID, err)
	}
	return nil
}

// Remove удаляет лот (gift куплен или снят)
func (r *Repository) Remove(ctx context.Context, giftID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM active_listings WHERE gift_id = $1`, giftID,
	); err != nil {
		return fmt.Errorf("ошибка удаления лота %s: %w", giftID, err)
	}
	return nil
}

// ByAssetKey возвращает лоты одного ключа актива
func (r *Repository) ByAssetKey(ctx context.Context, assetKey string) ([]types.ActiveListing, error) {
	model, backdrop, number, err := types.ParseAssetKey(assetKey)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT gift_id, gift_name, model, backdrop, pattern, number,
	       price, listed_at, last_updated, source
	FROM active_listings
	WHERE model = $1 AND backdrop = $2 AND number IS NULL
	ORDER BY price ASC, listed_at ASC
	`
	args := []interface{}{model, backdrop}
	if number != nil {
		query = `
		SELECT gift_id, gift_name, model, backdrop, pattern, number,
		       price, listed_at, last_updated, source
		FROM active_listings
		WHERE model = $1 AND backdrop = $2 AND number = $3
		ORDER BY price ASC, listed_at ASC
		`
		args = append(args, *number)
	}

	var result []types.ActiveListing
	if err := r.db.SelectContext(ctx, &result, query, args...); err != nil {
		return nil, fmt.Errorf("ошибка выборки лотов %s: %w", assetKey, err)
	}
	return result, nil
}

// All возвращает все актуальные лоты
func (r *Repository) All(ctx context.Context) ([]types.ActiveListing, error) {
	query := `
	SELECT gift_id, gift_name, model, backdrop, pattern, number,
	       price, listed_at, last_updated, source
	FROM active_listings
	ORDER BY listed_at DESC
	`

	var result []types.ActiveListing
	if err := r.db.SelectContext(ctx, &result, query); err != nil {
		return nil, fmt.Errorf("ошибка выборки лотов: %w", err)
	}
	return result, nil
}

// AssetKeys возвращает ключи активов, у которых есть хотя бы один лот
func (r *Repository) AssetKeys(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT model, COALESCE(backdrop, ''), number
	FROM active_listings
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки ключей активов: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var model, backdrop string
		var number *int
		if err := rows.Scan(&model, &backdrop, &number); err != nil {
			return nil, fmt.Errorf("ошибка чтения ключа актива: %w", err)
		}
		keys = append(keys, types.ResolveAssetKey(model, backdrop, number))
	}
	return keys, rows.Err()
}
