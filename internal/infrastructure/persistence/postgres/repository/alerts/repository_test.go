// internal/infrastructure/persistence/postgres/repository/alerts/repository_test.go
package alerts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Перепроверка кулдауна полагается на advisory-лок: без него две
// транзакции под READ COMMITTED не видят незакоммиченные вставки
// друг друга и обе проходят WHERE NOT EXISTS
func TestAppendIfAllowed_QueryGuardsConcurrentInsert(t *testing.T) {
	assert.Contains(t, pairLockQuery, "pg_advisory_xact_lock")
	assert.Contains(t, appendIfAllowedQuery, "WHERE NOT EXISTS")
	// Лок и вставка адресуют одну и ту же пару (user, asset)
	assert.True(t, strings.Contains(appendIfAllowedQuery, "user_id = $2 AND asset_key = $3"))
}
