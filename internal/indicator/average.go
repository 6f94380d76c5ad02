package indicator

import (
	"fmt"
	"strings"
)

// MAKind selects a moving average.
type MAKind string

const (
	KindSMA MAKind = "sma"
	KindEMA MAKind = "ema"
)

// ParseMAKind accepts "sma" or "ema" in any case.
func ParseMAKind(s string) (MAKind, error) {
	switch k := MAKind(strings.ToLower(s)); k {
	case KindSMA, KindEMA:
		return k, nil
	default:
		return "", fmt.Errorf("indicator: unknown moving average %q", s)
	}
}

// MA returns the moving average of kind over prices.
func MA(kind MAKind, prices []float64, period int) []float64 {
	if kind == KindEMA {
		return EMA(prices, period)
	}
	return SMA(prices, period)
}

// SMA returns the mean of every complete window of period prices, oldest
// first: len(prices) - period + 1 values, or none when prices is shorter.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	out := make([]float64, len(prices)-period+1)
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i-period+1] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the SMA of the first window. It is aligned with SMA.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	k := 2 / float64(period+1)
	ema := SMA(prices[:period], period)[0]

	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)
	for _, p := range prices[period:] {
		ema += k * (p - ema)
		out = append(out, ema)
	}
	return out
}
