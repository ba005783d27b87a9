// internal/infrastructure/persistence/postgres/repository/users/repository.go
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gift-market-sniper/internal/types"
)

// Repository - Postgres-реализация хранилища пользователей:
// настройки, вотчлисты и мьюты
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает репозиторий пользователей
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const settingsColumns = `
	user_id, mode, price_min, price_max, profit_min,
	background_filter, criterion, rarity_min, rarity_max,
	clean_only, active, created_at, updated_at
`

// ActiveUsers возвращает пользователей с включенными алертами
func (r *Repository) ActiveUsers(ctx context.Context) ([]types.UserSettings, error) {
	query := `SELECT` + settingsColumns + `FROM user_settings WHERE active = TRUE`

	var users []types.UserSettings
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("ошибка выборки активных пользователей: %w", err)
	}
	return users, nil
}

// Settings возвращает настройки пользователя, nil если записи нет
func (r *Repository) Settings(ctx context.Context, userID int64) (*types.UserSettings, error) {
	query := `SELECT` + settingsColumns + `FROM user_settings WHERE user_id = $1`

	var settings types.UserSettings
	if err := r.db.GetContext(ctx, &settings, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка выборки настроек пользователя %d: %w", userID, err)
	}
	return &settings, nil
}

// SaveSettings вставляет или обновляет настройки целиком
func (r *Repository) SaveSettings(ctx context.Context, settings types.UserSettings) error {
	query := `
	INSERT INTO user_settings (
		user_id, mode, price_min, price_max, profit_min,
		background_filter, criterion, rarity_min, rarity_max,
		clean_only, active, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		mode = EXCLUDED.mode,
		price_min = EXCLUDED.price_min,
		price_max = EXCLUDED.price_max,
		profit_min = EXCLUDED.profit_min,
		background_filter = EXCLUDED.background_filter,
		criterion = EXCLUDED.criterion,
		rarity_min = EXCLUDED.rarity_min,
		rarity_max = EXCLUDED.rarity_max,
		clean_only = EXCLUDED.clean_only,
		active = EXCLUDED.active,
		updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query,
		settings.UserID, settings.Mode, settings.PriceMin, settings.PriceMax,
		settings.ProfitMin, settings.BackgroundFilter, settings.Criterion,
		settings.RarityMin, settings.RarityMax, settings.CleanOnly, settings.Active,
	); err != nil {
		return fmt.Errorf("ошибка сохранения настроек пользователя %d: %w", settings.UserID, err)
	}
	return nil
}

// WatchlistThreshold возвращает персональный порог профита
// для пары (user, asset), nil если записи нет
func (r *Repository) WatchlistThreshold(ctx context.Context, userID int64, assetKey string) (*float64, error) {
	query := `
	SELECT profit_threshold FROM watchlist
	WHERE user_id = $1 AND asset_key = $2
	`

	var threshold float64
	if err := r.db.GetContext(ctx, &threshold, query, userID, assetKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка выборки вотчлиста %d/%s: %w", userID, assetKey, err)
	}
	return &threshold, nil
}

// AddWatchlistEntry добавляет или обновляет запись вотчлиста
func (r *Repository) AddWatchlistEntry(ctx context.Context, entry types.WatchlistEntry) error {
	query := `
	INSERT INTO watchlist (user_id, asset_key, profit_threshold)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, asset_key) DO UPDATE SET
		profit_threshold = EXCLUDED.profit_threshold
	`

	if _, err := r.db.ExecContext(ctx, query,
		entry.UserID, entry.AssetKey, entry.ProfitThreshold,
	); err != nil {
		return fmt.Errorf("ошибка добавления в вотчлист %d/%s: %w", entry.UserID, entry.AssetKey, err)
	}
	return nil
}

// RemoveWatchlistEntry удаляет запись вотчлиста
func (r *Repository) RemoveWatchlistEntry(ctx context.Context, userID int64, assetKey string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND asset_key = $2`,
		userID, assetKey,
	); err != nil {
		return fmt.Errorf("ошибка удаления из вотчлиста %d/%s: %w", userID, assetKey, err)
	}
	return nil
}

// MutedUntil возвращает срок мьюта пары (user, asset), nil если мьюта нет.
// Просроченная запись удаляется лениво при чтении.
func (r *Repository) MutedUntil(ctx context.Context, userID int64, assetKey string) (*time.Time, error) {
	query := `
	SELECT muted_until FROM muted_assets
	WHERE user_id = $1 AND asset_key = $2
	`

	var until time.Time
	if err := r.db.GetContext(ctx, &until, query, userID, assetKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка выборки мьюта %d/%s: %w", userID, assetKey, err)
	}

	if !until.After(time.Now()) {
		_, _ = r.db.ExecContext(ctx,
			`DELETE FROM muted_assets WHERE user_id = $1 AND asset_key = $2 AND muted_until <= NOW()`,
			userID, assetKey,
		)
		return nil, nil
	}
	return &until, nil
}

// Mute ставит или продлевает мьют пары (user, asset)
func (r *Repository) Mute(ctx context.Context, muted types.MutedAsset) error {
	query := `
	INSERT INTO muted_assets (user_id, asset_key, muted_until)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, asset_key) DO UPDATE SET
		muted_until = EXCLUDED.muted_until
	`

	if _, err := r.db.ExecContext(ctx, query,
		muted.UserID, muted.AssetKey, muted.MutedUntil,
	); err != nil {
		return fmt.Errorf("ошибка мьюта %d/%s: %w", muted.UserID, muted.AssetKey, err)
	}
	return nil
}

// Unmute снимает мьют пары (user, asset)
func (r *Repository) Unmute(ctx context.Context, userID int64, assetKey string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM muted_assets WHERE user_id = $1 AND asset_key = $2`,
		userID, assetKey,
	); err != nil {
		return fmt.Errorf("ошибка снятия мьюта %d/%s: %w", userID, assetKey, err)
	}
	return nil
}
