// internal/analytics/quantile.go
package analytics

import "sort"

// quantile возвращает квантиль q из выборки методом линейной интерполяции.
// Выборка копируется и сортируется внутри. Пустая выборка даёт (0, false).
func quantile(samples []float64, q float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	if len(samples) == 1 {
		return samples[0], true
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0], true
	}
	if q >= 1 {
		return sorted[len(sorted)-1], true
	}

	// Линейная интерполяция между соседними порядковыми статистиками
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	frac := pos - float64(lo)

	if hi >= len(sorted) {
		return sorted[lo], true
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, true
}

// maxSample возвращает максимум выборки
func maxSample(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	max := samples[0]
	for _, s := range samples[1:] {
		if s > max {
			max = s
		}
	}
	return max, true
}
