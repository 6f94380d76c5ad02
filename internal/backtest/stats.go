package backtest

import (
	"math"

	"github.com/newthinker/quant/internal/fill"
)

// CalculateStats computes performance statistics from the equity curve and
// the completed-trade log.
func CalculateStats(initialCash float64, equity []float64, trades []fill.Trade) Stats {
	var s Stats
	s.TotalTrades = len(trades)
	for _, t := range trades {
		if t.IsWin() {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
		s.NetProfit += t.NetPnL()
		s.TotalCommission += t.Commission
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}

	if len(equity) == 0 || initialCash <= 0 {
		return s
	}
	s.TotalReturn = (equity[len(equity)-1]/initialCash - 1) * 100
	s.MaxDrawdown = calculateMaxDrawdown(initialCash, equity) * 100
	s.SharpeRatio = calculateSharpeRatio(returns(initialCash, equity))
	return s
}

func returns(initialCash float64, equity []float64) []float64 {
	out := make([]float64, 0, len(equity))
	prev := initialCash
	for _, e := range equity {
		if prev > 0 {
			out = append(out, e/prev-1)
		}
		prev = e
	}
	return out
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(initialCash float64, equity []float64) float64 {
	var maxDD float64
	peak := initialCash

	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	// Calculate mean return
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	// Calculate standard deviation
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming ~252 trading days)
	annualizedReturn := mean * 252
	annualizedStdDev := stdDev * math.Sqrt(252)

	return annualizedReturn / annualizedStdDev
}
