// internal/types/asset.go
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// NoBackdropKey - плейсхолдер для активов без фона в составе ключа
const NoBackdropKey = "no_bg"

// blackPackBackdrops - фиксированный список фонов black pack.
// Сравнение строгое, с учётом регистра.
var blackPackBackdrops = map[string]bool{
	"Black":      true,
	"Black Onyx": true,
}

// IsBlackPackBackdrop проверяет, входит ли фон в список black pack
func IsBlackPackBackdrop(backdrop string) bool {
	return blackPackBackdrops[backdrop]
}

// ResolveAssetKey строит канонический ключ актива model:backdrop[:number].
// Чистая функция: один и тот же дизайн всегда даёт один и тот же ключ,
// какой бы лот его ни представлял.
func ResolveAssetKey(model, backdrop string, number *int) string {
	backdropKey := backdrop
	if backdropKey == "" {
		backdropKey = NoBackdropKey
	}
	if number != nil {
		return fmt.Sprintf("%s:%s:%d", model, backdropKey, *number)
	}
	return fmt.Sprintf("%s:%s", model, backdropKey)
}

// ParseAssetKey разбирает ключ актива обратно на составляющие
func ParseAssetKey(assetKey string) (model, backdrop string, number *int, err error) {
	parts := strings.Split(assetKey, ":")
	if len(parts) < 2 {
		return "", "", nil, NewEngineError(ErrMalformedEvent,
			fmt.Sprintf("invalid asset_key format: %q", assetKey), nil)
	}

	model = parts[0]
	if parts[1] != NoBackdropKey {
		backdrop = parts[1]
	}

	if len(parts) >= 3 {
		n, convErr := strconv.Atoi(parts[2])
		if convErr != nil {
			return "", "", nil, NewEngineError(ErrMalformedEvent,
				fmt.Sprintf("invalid number in asset_key %q", assetKey), convErr)
		}
		number = &n
	}

	return model, backdrop, number, nil
}
