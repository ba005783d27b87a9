// internal/infrastructure/persistence/postgres/schema.go
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"gift-market-sniper/pkg/logger"
)

// schema - DDL движка. Уникальный индекс market_events по
// (event_time, gift_id, event_type) обеспечивает дедупликацию
// повторов на уровне базы.
const schema = `
CREATE TABLE IF NOT EXISTS market_events (
	id BIGSERIAL PRIMARY KEY,
	event_type VARCHAR(16) NOT NULL,
	event_time TIMESTAMP WITH TIME ZONE NOT NULL,
	gift_id VARCHAR(64) NOT NULL,
	gift_name VARCHAR(255) NOT NULL DEFAULT '',
	model VARCHAR(128) NOT NULL,
	backdrop VARCHAR(128) NOT NULL DEFAULT '',
	pattern VARCHAR(128) NOT NULL DEFAULT '',
	number INTEGER,
	price DOUBLE PRECISION NOT NULL,
	price_old DOUBLE PRECISION,
	photo_url TEXT NOT NULL DEFAULT '',
	source VARCHAR(32) NOT NULL,
	marketplace VARCHAR(32) NOT NULL DEFAULT 'unknown',
	raw_payload JSONB,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_market_events_identity
	ON market_events(event_time, gift_id, event_type);
CREATE INDEX IF NOT EXISTS idx_market_events_asset
	ON market_events(model, backdrop, event_time DESC);
CREATE INDEX IF NOT EXISTS idx_market_events_time
	ON market_events(event_time DESC);

CREATE TABLE IF NOT EXISTS active_listings (
	gift_id VARCHAR(64) PRIMARY KEY,
	gift_name VARCHAR(255) NOT NULL DEFAULT '',
	model VARCHAR(128) NOT NULL,
	backdrop VARCHAR(128) NOT NULL DEFAULT '',
	pattern VARCHAR(128) NOT NULL DEFAULT '',
	number INTEGER,
	price DOUBLE PRECISION NOT NULL,
	listed_at TIMESTAMP WITH TIME ZONE NOT NULL,
	last_updated TIMESTAMP WITH TIME ZONE NOT NULL,
	source VARCHAR(32) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_active_listings_asset
	ON active_listings(model, backdrop);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id BIGINT PRIMARY KEY,
	mode VARCHAR(16) NOT NULL DEFAULT 'spam',
	price_min DOUBLE PRECISION,
	price_max DOUBLE PRECISION,
	profit_min DOUBLE PRECISION NOT NULL DEFAULT 0,
	background_filter VARCHAR(16) NOT NULL DEFAULT 'any',
	criterion VARCHAR(32) NOT NULL DEFAULT '',
	rarity_min INTEGER,
	rarity_max INTEGER,
	clean_only BOOLEAN NOT NULL DEFAULT FALSE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS watchlist (
	user_id BIGINT NOT NULL,
	asset_key VARCHAR(255) NOT NULL,
	profit_threshold DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
	PRIMARY KEY (user_id, asset_key)
);

CREATE TABLE IF NOT EXISTS muted_assets (
	user_id BIGINT NOT NULL,
	asset_key VARCHAR(255) NOT NULL,
	muted_until TIMESTAMP WITH TIME ZONE NOT NULL,
	PRIMARY KEY (user_id, asset_key)
);

CREATE TABLE IF NOT EXISTS sent_alerts (
	id UUID PRIMARY KEY,
	user_id BIGINT NOT NULL,
	asset_key VARCHAR(255) NOT NULL,
	event_id VARCHAR(128) NOT NULL,
	profit_pct DOUBLE PRECISION NOT NULL,
	sent_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_alerts_pair
	ON sent_alerts(user_id, asset_key, sent_at DESC);
`

// EnsureSchema создает таблицы и индексы, если их еще нет
func EnsureSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("✅ Database schema is up to date")
	return nil
}
