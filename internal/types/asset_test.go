// internal/types/asset_test.go
package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAssetKey(t *testing.T) {
	assert.Equal(t, "Santa Hat:Navy", ResolveAssetKey("Santa Hat", "Navy", nil))
	assert.Equal(t, "Santa Hat:no_bg", ResolveAssetKey("Santa Hat", "", nil))

	n := 777
	assert.Equal(t, "Santa Hat:Navy:777", ResolveAssetKey("Santa Hat", "Navy", &n))
	assert.Equal(t, "Santa Hat:no_bg:777", ResolveAssetKey("Santa Hat", "", &n))
}

func TestParseAssetKey_RoundTrip(t *testing.T) {
	n := 42
	cases := []struct {
		model    string
		backdrop string
		number   *int
	}{
		{"Santa Hat", "Navy", nil},
		{"Santa Hat", "", nil},
		{"Plush Pepe", "Black Onyx", &n},
	}

	for _, tc := range cases {
		key := ResolveAssetKey(tc.model, tc.backdrop, tc.number)
		model, backdrop, number, err := ParseAssetKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, tc.model, model)
		assert.Equal(t, tc.backdrop, backdrop)
		if tc.number == nil {
			assert.Nil(t, number)
		} else {
			require.NotNil(t, number)
			assert.Equal(t, *tc.number, *number)
		}
	}
}

func TestParseAssetKey_Malformed(t *testing.T) {
	_, _, _, err := ParseAssetKey("no-separator")
	assert.Error(t, err)

	_, _, _, err = ParseAssetKey("Santa Hat:Navy:notanumber")
	assert.Error(t, err)
}

func TestIsBlackPackBackdrop(t *testing.T) {
	assert.True(t, IsBlackPackBackdrop("Black"))
	assert.True(t, IsBlackPackBackdrop("Black Onyx"))

	// Сравнение с учётом регистра, частичные совпадения не считаются
	assert.False(t, IsBlackPackBackdrop("black"))
	assert.False(t, IsBlackPackBackdrop("Onyx Black"))
	assert.False(t, IsBlackPackBackdrop("Navy"))
	assert.False(t, IsBlackPackBackdrop(""))
}

func TestMarketEventValidateAndKeys(t *testing.T) {
	now := time.Now()
	event := MarketEvent{
		EventTime: now,
		EventType: EventListing,
		GiftID:    "g1",
		Model:     "Santa Hat",
		Backdrop:  "Black",
		Price:     10,
	}

	require.NoError(t, event.Validate())
	assert.Equal(t, "Santa Hat:Black", event.AssetKey())
	assert.True(t, event.IsBlackPack())

	// Идентичность события не зависит от цены
	repriced := event
	repriced.Price = 12
	assert.Equal(t, event.DedupKey(), repriced.DedupKey())

	other := event
	other.EventType = EventBuy
	assert.NotEqual(t, event.DedupKey(), other.DedupKey())
}

func TestMarketEventValidate_Rejects(t *testing.T) {
	now := time.Now()
	good := MarketEvent{EventTime: now, EventType: EventBuy, GiftID: "g1", Model: "Santa Hat", Price: 10}

	noPrice := good
	noPrice.Price = 0
	assert.Error(t, noPrice.Validate())

	noGift := good
	noGift.GiftID = ""
	assert.Error(t, noGift.Validate())

	badType := good
	badType.EventType = "transfer"
	assert.Error(t, badType.Validate())

	noTime := good
	noTime.EventTime = time.Time{}
	assert.Error(t, noTime.Validate())
}
