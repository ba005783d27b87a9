// internal/infrastructure/persistence/postgres/schema_test.go
package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gift-market-sniper/internal/types"
)

// Колонка event_id хранит дедуп-ключ события, а не UUID: её ширина
// обязана вмещать ключ при максимальной длине gift_id
func TestSchema_EventIDFitsDedupKey(t *testing.T) {
	event := types.MarketEvent{
		EventTime: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		EventType: types.EventChangePrice, // самый длинный тип
		GiftID:    strings.Repeat("x", 64),
		Model:     "Santa Hat",
		Price:     10,
	}

	require.LessOrEqual(t, len(event.DedupKey()), 128)
	assert.Contains(t, schema, "event_id VARCHAR(128)")
}
