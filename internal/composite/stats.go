package composite

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mapbiomas/brazil-cerrado/internal/band"
)

// samples drops no-data and sorts, so every reduction over it is independent
// of acquisition order.
func samples(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !band.IsNoData(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// Percentile interpolates linearly between the closest ranks of sorted,
// rank h = (n-1)·p/100. Empty input yields no-data.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return band.NoData
	}
	if n == 1 {
		return sorted[0]
	}
	h := (float64(n) - 1) * p / 100
	lo := int(math.Floor(h))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func Median(sorted []float64) float64 {
	return Percentile(sorted, 50)
}

// PopStdDev is the population standard deviation (divisor n).
func PopStdDev(sorted []float64) float64 {
	if len(sorted) == 0 {
		return band.NoData
	}
	_, variance := stat.PopMeanVariance(sorted, nil)
	return math.Sqrt(variance)
}

// PopVariance is the population variance (divisor n).
func PopVariance(sorted []float64) float64 {
	if len(sorted) == 0 {
		return band.NoData
	}
	_, variance := stat.PopMeanVariance(sorted, nil)
	return variance
}
