package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// sumAmounts adds amounts in decimal so totals stay cent-exact.
func sumAmounts(amounts []float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}

// amountStats computes population statistics over amounts.
func amountStats(amounts []float64) model.AmountStats {
	if len(amounts) == 0 {
		return model.AmountStats{}
	}

	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	mean := sumAmounts(sorted) / n

	var variance float64
	for _, a := range sorted {
		d := a - mean
		variance += d * d
	}
	stdDev := math.Sqrt(variance / n)

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	var cv float64
	if mean != 0 {
		cv = stdDev / math.Abs(mean)
	}

	return model.AmountStats{
		Min:                    sorted[0],
		Max:                    sorted[len(sorted)-1],
		Mean:                   mean,
		Median:                 median,
		StdDev:                 stdDev,
		CoefficientOfVariation: cv,
	}
}
