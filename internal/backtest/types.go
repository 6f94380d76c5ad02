package backtest

import (
	"time"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/fill"
	ts "github.com/newthinker/quant/internal/timeseries"
)

// Result holds the complete backtest output
type Result struct {
	RunID       string
	Strategy    string
	Start       time.Time
	End         time.Time
	InitialCash float64
	FinalEquity float64
	// Halted is set when the run stopped on ruin.
	Halted      bool
	Instruments []string
	Series      *ts.Store
	Trades      []fill.Trade
	Orders      []*broker.Order
	Stats       Stats
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64 // Percentage of profitable pairs
	TotalReturn     float64 // Net return percentage
	MaxDrawdown     float64 // Largest peak-to-trough equity decline, percent
	SharpeRatio     float64 // Risk-adjusted return (annualized)
	NetProfit       float64 // Realized profit less commission
	TotalCommission float64
}

// EquityCurve returns the account equity series values.
func (r *Result) EquityCurve() []float64 {
	if r.Series == nil {
		return nil
	}
	return r.Series.Global(ts.Equity).Values()
}
