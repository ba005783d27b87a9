// internal/infrastructure/persistence/postgres/repository/alerts/repository.go
package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gift-market-sniper/internal/types"
)

// Repository - Postgres-реализация журнала отправленных алертов.
// AppendIfAllowed выполняет перепроверку кулдауна и вставку в одной
// транзакции под advisory-локом пары: гонка двух конкурентных оценок,
// в том числе из разных экземпляров движка, решается базой в пользу
// "не отправлять дважды".
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает репозиторий алертов
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Latest возвращает последний алерт пары (user, asset), nil если не было
func (r *Repository) Latest(ctx context.Context, userID int64, assetKey string) (*types.SentAlert, error) {
	query := `
	SELECT id, user_id, asset_key, event_id, profit_pct, sent_at
	FROM sent_alerts
	WHERE user_id = $1 AND asset_key = $2
	ORDER BY sent_at DESC
	LIMIT 1
	`

	var alert types.SentAlert
	if err := r.db.GetContext(ctx, &alert, query, userID, assetKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка выборки последнего алерта %d/%s: %w", userID, assetKey, err)
	}
	return &alert, nil
}

// pairLockQuery берет транзакционный advisory-лок пары (user, asset).
// Под READ COMMITTED две конкурентные вставки не видят друг друга в
// WHERE NOT EXISTS; лок сериализует их между экземплярами движка.
const pairLockQuery = `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2))`

const appendIfAllowedQuery = `
	INSERT INTO sent_alerts (id, user_id, asset_key, event_id, profit_pct, sent_at)
	SELECT $1, $2, $3, $4, $5, $6
	WHERE NOT EXISTS (
		SELECT 1 FROM sent_alerts
		WHERE user_id = $2 AND asset_key = $3
		AND sent_at > $7
		AND profit_pct + $8 > $5
	)
	`

// AppendIfAllowed атомарно перепроверяет кулдаун и добавляет запись.
// Вставка проходит, когда внутри окна нет алерта по паре, либо новый
// профит превышает последний как минимум на escalationMargin пунктов.
func (r *Repository) AppendIfAllowed(ctx context.Context, alert types.SentAlert, window time.Duration, escalationMargin float64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("ошибка открытия транзакции алерта: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, pairLockQuery, alert.UserID, alert.AssetKey); err != nil {
		return false, fmt.Errorf("ошибка блокировки пары %d/%s: %w", alert.UserID, alert.AssetKey, err)
	}

	windowStart := alert.SentAt.Add(-window)
	res, err := tx.ExecContext(ctx, appendIfAllowedQuery,
		alert.ID, alert.UserID, alert.AssetKey, alert.EventID,
		alert.ProfitPct, alert.SentAt, windowStart, escalationMargin,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка записи алерта %d/%s: %w", alert.UserID, alert.AssetKey, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки вставки алерта: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("ошибка фиксации алерта %d/%s: %w", alert.UserID, alert.AssetKey, err)
	}
	return affected > 0, nil
}
