package backtest

import (
	"math"
	"testing"

	"github.com/newthinker/quant/internal/fill"
)

func TestCalculateStats_Empty(t *testing.T) {
	stats := CalculateStats(100000, nil, nil)

	if stats.TotalTrades != 0 {
		t.Errorf("expected 0 trades, got %d", stats.TotalTrades)
	}
	if stats.TotalReturn != 0 || stats.MaxDrawdown != 0 {
		t.Errorf("expected zero returns, got %+v", stats)
	}
}

func TestCalculateStats_Trades(t *testing.T) {
	trades := []fill.Trade{
		{PnL: 100, Commission: 10}, // win
		{PnL: 5, Commission: 10},   // loses after commission
		{PnL: -50, Commission: 10},
		{PnL: 200, Commission: 10},
	}

	stats := CalculateStats(100000, nil, trades)

	if stats.TotalTrades != 4 {
		t.Errorf("expected 4 trades, got %d", stats.TotalTrades)
	}
	if stats.WinningTrades != 2 || stats.LosingTrades != 2 {
		t.Errorf("expected 2/2, got %d/%d", stats.WinningTrades, stats.LosingTrades)
	}
	if stats.WinRate != 50 {
		t.Errorf("expected win rate 50, got %f", stats.WinRate)
	}
	if stats.TotalCommission != 40 {
		t.Errorf("expected commission 40, got %f", stats.TotalCommission)
	}
	if stats.NetProfit != 215 {
		t.Errorf("expected net profit 215, got %f", stats.NetProfit)
	}
}

func TestCalculateStats_EquityCurve(t *testing.T) {
	stats := CalculateStats(100, []float64{110, 99, 120}, nil)

	if math.Abs(stats.TotalReturn-20) > 1e-9 {
		t.Errorf("expected total return 20, got %f", stats.TotalReturn)
	}
	// peak 110 to trough 99
	if math.Abs(stats.MaxDrawdown-10) > 1e-9 {
		t.Errorf("expected max drawdown 10, got %f", stats.MaxDrawdown)
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		equity   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"only up", []float64{110, 120}, 0},
		{"below start", []float64{80, 90}, 0.2},
		{"recovery", []float64{120, 60, 150}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateMaxDrawdown(100, tt.equity)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestCalculateSharpeRatio(t *testing.T) {
	if calculateSharpeRatio([]float64{0.01}) != 0 {
		t.Error("expected 0 for a single return")
	}
	if calculateSharpeRatio([]float64{0.01, 0.01, 0.01}) != 0 {
		t.Error("expected 0 for constant returns")
	}
	if calculateSharpeRatio([]float64{0.01, 0.02, 0.015, 0.03}) <= 0 {
		t.Error("expected positive sharpe for positive returns")
	}
}
