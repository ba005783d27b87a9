// internal/analytics/arp.go
package analytics

import (
	"math"

	"gift-market-sniper/internal/types"
)

// AdaptiveReferencePrice - взвешенная справочная цена (ARP): комбинация
// флора и медианы продаж с поправками на ликвидность и тренд.
// Возвращает nil, когда ни флоров, ни медианы нет.
func AdaptiveReferencePrice(a *types.AssetAnalytics) *float64 {
	if a == nil {
		return nil
	}

	// Вес флора ниже при высокой ликвидности: продажи информативнее
	floorWeight := 0.6
	if a.LiquidityScore >= 5 {
		floorWeight = 0.4
	}
	salesWeight := 1.0 - floorWeight

	var floorComponent *float64
	switch {
	case a.Floor2nd != nil:
		floorComponent = a.Floor2nd
	case a.Floor1st != nil:
		// Единственный лот - консервативный множитель
		v := *a.Floor1st * 1.20
		floorComponent = &v
	case a.ListingsCount == 0 && a.PriceQ50 != nil:
		// Лотов нет совсем - отталкиваемся от медианы продаж
		v := *a.PriceQ50 * 1.10
		floorComponent = &v
	}

	salesComponent := a.PriceQ50

	var arp float64
	switch {
	case floorComponent != nil && salesComponent != nil:
		arp = *floorComponent*floorWeight + *salesComponent*salesWeight
	case floorComponent != nil:
		arp = *floorComponent
	case salesComponent != nil:
		arp = *salesComponent
	default:
		return nil
	}

	// Штраф за неликвидность: требуем больший дисконт
	if a.LiquidityScore < 3 {
		arp *= 1.5
	} else if a.LiquidityScore < 5 {
		arp *= 1.2
	}

	// Поправка на импульс рынка
	switch a.Trend {
	case types.TrendFalling:
		arp *= 0.95
	case types.TrendRising:
		arp *= 1.05
	}

	arp = math.Round(arp*100) / 100
	return &arp
}
