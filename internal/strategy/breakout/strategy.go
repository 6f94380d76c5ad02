package breakout

import (
	"fmt"
	"math"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/indicator"
	"github.com/newthinker/quant/internal/strategy"
)

// Breakout implements a channel breakout strategy sized by volatility.
// It enters when the close breaks the prior entryPeriod high or low, with a
// stop and a trailing stop stopATR true ranges away, and exits when the close
// breaks the prior exitPeriod channel the other way.
type Breakout struct {
	entryPeriod int
	exitPeriod  int
	atrPeriod   int
	riskPct     float64
	stopATR     float64
}

// New creates a new Breakout strategy
func New() *Breakout {
	return &Breakout{
		entryPeriod: 20,
		exitPeriod:  10,
		atrPeriod:   20,
		riskPct:     1,
		stopATR:     2,
	}
}

func (b *Breakout) Name() string {
	return "breakout"
}

func (b *Breakout) Description() string {
	return fmt.Sprintf("Channel breakout (%d/%d, ATR%d x%.1f)", b.entryPeriod, b.exitPeriod, b.atrPeriod, b.stopATR)
}

func (b *Breakout) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		PriceHistory: max(b.entryPeriod, b.exitPeriod, b.atrPeriod) + 1,
		Indicators:   []string{"ATR", "HHV", "LLV"},
	}
}

func (b *Breakout) Init(cfg strategy.Config) error {
	b.entryPeriod = cfg.Int("entry_period", b.entryPeriod)
	b.exitPeriod = cfg.Int("exit_period", b.exitPeriod)
	b.atrPeriod = cfg.Int("atr_period", b.atrPeriod)
	b.riskPct = cfg.Float("risk_pct", b.riskPct)
	b.stopATR = cfg.Float("stop_atr", b.stopATR)

	if b.entryPeriod <= 0 || b.exitPeriod <= 0 || b.atrPeriod <= 0 {
		return fmt.Errorf("breakout: periods must be positive")
	}
	if b.riskPct <= 0 || b.stopATR <= 0 {
		return fmt.Errorf("breakout: risk_pct and stop_atr must be positive")
	}
	return nil
}

func (b *Breakout) OnBar(ctx *strategy.Context) error {
	closes := ctx.Closes()
	highs := ctx.Highs()
	lows := ctx.Lows()
	if len(closes) < b.RequiredData().PriceHistory {
		return nil
	}

	// Channels exclude the current bar.
	n := len(closes) - 1
	last := closes[n]
	pos := ctx.Position()

	switch {
	case pos > 0 && last < indicator.Lowest(lows[:n], b.exitPeriod):
		ctx.ExitAll()
		return nil
	case pos < 0 && last > indicator.Highest(highs[:n], b.exitPeriod):
		ctx.ExitAll()
		return nil
	case pos != 0:
		return nil
	}

	atr := indicator.ATR(highs, lows, closes, b.atrPeriod)
	if len(atr) == 0 || atr[len(atr)-1] <= 0 {
		return nil
	}
	unit := atr[len(atr)-1]
	lots := b.size(ctx.Equity(), unit, ctx.Contract.Multiplier)
	stop := broker.Points(b.stopATR * unit)

	if last > indicator.Highest(highs[:n], b.entryPeriod) {
		ctx.Buy(lots, strategy.WithStopLoss(stop), strategy.WithTrailingStop(stop))
	} else if last < indicator.Lowest(lows[:n], b.entryPeriod) {
		ctx.Sell(lots, strategy.WithStopLoss(stop), strategy.WithTrailingStop(stop))
	}
	return nil
}

// size risks riskPct of equity per ATR move, at least one lot.
func (b *Breakout) size(equity, atr, multiplier float64) int64 {
	if multiplier <= 0 {
		multiplier = 1
	}
	lots := math.Floor(equity * b.riskPct / 100 / (atr * multiplier))
	if lots < 1 || math.IsNaN(lots) {
		return 1
	}
	return int64(lots)
}
