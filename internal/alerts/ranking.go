// internal/alerts/ranking.go
package alerts

import (
	"sort"

	"gift-market-sniper/internal/types"
)

// RankDeals сортирует кандидатов одного батча на месте:
// приоритет бейджа, затем профит по убыванию, затем hotness.
func RankDeals(dealList []types.Deal) {
	sort.SliceStable(dealList, func(i, j int) bool {
		a, b := &dealList[i], &dealList[j]

		if pa, pb := a.QualityBadge.Priority(), b.QualityBadge.Priority(); pa != pb {
			return pa < pb
		}

		profitA, _ := a.Profit()
		profitB, _ := b.Profit()
		if profitA != profitB {
			return profitA > profitB
		}

		return a.Hotness > b.Hotness
	})
}

// SmartScore - комбинированный ранг для фида сделок:
// profit*0.4 + liquidity*3.0 + confidence*0.2 + hotness*0.1
func SmartScore(deal *types.Deal) float64 {
	profit, _ := deal.Profit()

	confidence := 0.0
	switch deal.ConfidenceLevel {
	case types.ConfidenceVeryHigh:
		confidence = 4
	case types.ConfidenceHigh:
		confidence = 3
	case types.ConfidenceMedium:
		confidence = 2
	case types.ConfidenceLow:
		confidence = 1
	}

	return profit*0.4 + deal.LiquidityScore*3.0 + confidence*0.2 + deal.Hotness*0.1
}
