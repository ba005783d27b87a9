// internal/notifier/console_notifier.go
package notifier

import (
	"fmt"
	"log"
	"time"

	"gift-market-sniper/internal/types"
)

// ConsoleNotifier нотификатор для консоли
type ConsoleNotifier struct {
	enabled bool
	compact bool
	stats   map[string]interface{}
}

// NewConsoleNotifier создает консольный нотификатор
func NewConsoleNotifier(compact bool) *ConsoleNotifier {
	return &ConsoleNotifier{
		enabled: true,
		compact: compact,
		stats: map[string]interface{}{
			"sent":           0,
			"last_sent_time": time.Time{},
			"type":           "console",
		},
	}
}

// Send печатает решение об алерте в консоль
func (c *ConsoleNotifier) Send(decision types.AlertDecision) error {
	if !c.enabled {
		return nil
	}

	deal := decision.Deal

	icon := "💎"
	if deal.IsBlackPack {
		icon = "🖤"
	} else if deal.QualityBadge == types.BadgeSniper {
		icon = "🎯"
	} else if deal.QualityBadge == types.BadgeHot {
		icon = "🔥"
	}

	profit := "n/a"
	if p, ok := deal.Profit(); ok {
		profit = fmt.Sprintf("%.1f%%", p)
	}

	if c.compact {
		log.Printf("%s user=%d %s: %.2f TON, профит %s, hotness %.1f",
			icon, decision.UserID, deal.AssetKey, deal.Price, profit, deal.Hotness)
	} else {
		fmt.Println("══════════════════════════════════════════════════")
		fmt.Printf("%s %s (user %d)\n", icon, deal.AssetKey, decision.UserID)
		fmt.Printf("   Цена: %.2f TON | Профит: %s | Бейдж: %s\n",
			deal.Price, profit, deal.QualityBadge)
		fmt.Printf("   Уверенность: %s | Ликвидность: %.1f | Hotness: %.1f\n",
			deal.ConfidenceLevel, deal.LiquidityScore, deal.Hotness)
		if deal.MarketplaceURL != "" {
			fmt.Printf("🔗 %s\n", deal.MarketplaceURL)
		}
		fmt.Println("══════════════════════════════════════════════════")
	}

	// Обновляем статистику
	c.stats["sent"] = c.stats["sent"].(int) + 1
	c.stats["last_sent_time"] = time.Now()

	return nil
}

// Name возвращает имя
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// IsEnabled возвращает статус
func (c *ConsoleNotifier) IsEnabled() bool {
	return c.enabled
}

// SetEnabled включает/выключает
func (c *ConsoleNotifier) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// GetStats возвращает статистику
func (c *ConsoleNotifier) GetStats() map[string]interface{} {
	return c.stats
}
