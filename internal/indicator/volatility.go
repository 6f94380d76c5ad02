package indicator

import "math"

// Highest returns the maximum of the last period values.
// Returns NaN when there are fewer than period values.
func Highest(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	out := math.Inf(-1)
	for _, v := range values[len(values)-period:] {
		out = math.Max(out, v)
	}
	return out
}

// Lowest returns the minimum of the last period values.
// Returns NaN when there are fewer than period values.
func Lowest(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	out := math.Inf(1)
	for _, v := range values[len(values)-period:] {
		out = math.Min(out, v)
	}
	return out
}

// TrueRange calculates the true range of each bar after the first:
// max(high-low, |high-prevClose|, |low-prevClose|).
// Returns slice of length: len(close) - 1
func TrueRange(high, low, close []float64) []float64 {
	n := min(len(high), len(low), len(close))
	if n < 2 {
		return []float64{}
	}
	result := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev := close[i-1]
		tr := math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
		result = append(result, tr)
	}
	return result
}

// ATR calculates the Average True Range as an SMA of the true range
func ATR(high, low, close []float64, period int) []float64 {
	return SMA(TrueRange(high, low, close), period)
}
