package features

import (
	"math"
	"sort"

	"NewsVol/internal/domain/models"
)

// BuildReturns computes simple percentage returns
// r_i = (C_{i+1} - C_i) / C_i * 100 between consecutive usable closes.
// Missing or non-positive closes are dropped first, so a gap never produces a
// NaN or infinite return. Fewer than two usable closes yield an empty series.
func BuildReturns(prices []models.PricePoint) models.ReturnSeries {
	usable := UsablePrices(prices)
	if len(usable) < 2 {
		return models.ReturnSeries{}
	}
	out := make(models.ReturnSeries, 0, len(usable)-1)
	for i := 1; i < len(usable); i++ {
		prev := usable[i-1].Close
		cur := usable[i].Close
		r := (cur - prev) / prev * 100
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, models.ReturnPoint{Date: usable[i].Date, Value: r})
	}
	return out
}

// UsablePrices filters out missing and non-positive closes, keeping order.
func UsablePrices(prices []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(prices))
	for _, p := range prices {
		if p.Usable() {
			out = append(out, p)
		}
	}
	return out
}

// NormalizePrices sorts by date ascending and collapses duplicate dates,
// keeping the last close seen for a date.
func NormalizePrices(prices []models.PricePoint) []models.PricePoint {
	if len(prices) == 0 {
		return nil
	}
	byDay := make(map[string]int, len(prices))
	out := make([]models.PricePoint, 0, len(prices))
	for _, p := range prices {
		key := p.Date.UTC().Format("2006-01-02")
		if idx, ok := byDay[key]; ok {
			out[idx] = p
			continue
		}
		byDay[key] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// MeanVariance returns the sample mean and the population variance of xs.
func MeanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	n := float64(len(xs))
	mean = sum / n
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= n
	return mean, variance
}

// RealizedVolatility is the sample standard deviation of the last window
// returns, or 0 when there is not enough data.
func RealizedVolatility(returns []float64, window int) float64 {
	if window <= 1 || len(returns) < window {
		return 0
	}
	tail := returns[len(returns)-window:]
	_, variance := MeanVariance(tail)
	n := float64(window)
	return math.Sqrt(variance * n / (n - 1))
}
