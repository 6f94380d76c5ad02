package breakout

import (
	"testing"
	"time"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
	"github.com/newthinker/quant/internal/strategy"
)

type fixedAccount struct {
	position int64
}

func (a fixedAccount) Position(string) int64   { return a.position }
func (a fixedAccount) AvgPrice(string) float64 { return 0 }
func (a fixedAccount) Equity() float64         { return 100000 }
func (a fixedAccount) Cash() float64           { return 100000 }

// contextFor builds bars with a range of 2 around each close.
func contextFor(closes []float64, position int64) *strategy.Context {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Instrument: "IF",
			Time:       start.AddDate(0, 0, i),
			Open:       c,
			High:       c + 1,
			Low:        c - 1,
			Close:      c,
		}
	}
	contract := core.Contract{Instrument: "IF", Lots: 1, Multiplier: 100}
	return strategy.NewContext(bars[len(bars)-1], bars, contract, fixedAccount{position: position})
}

func newTestBreakout(t *testing.T) *Breakout {
	t.Helper()
	b := New()
	err := b.Init(strategy.Config{Params: map[string]any{
		"entry_period": 3,
		"exit_period":  2,
		"atr_period":   2,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestBreakout_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*Breakout)(nil)
}

func TestBreakout_LongEntry(t *testing.T) {
	b := newTestBreakout(t)
	// prior 3 highs: 101, 101, 101; close 105 breaks out. ATR(2) = mean(2, 6) = 4
	ctx := contextFor([]float64{100, 100, 100, 100, 105}, 0)

	if err := b.OnBar(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	intents := ctx.Intents()
	if len(intents) != 1 {
		t.Fatalf("expected one entry, got %d", len(intents))
	}
	in := intents[0]
	if in.Direction != core.Buy {
		t.Errorf("expected buy, got %v", in.Direction)
	}
	// 100000 * 1% / (4 * 100) = 2.5 -> 2 lots
	if in.Lots != 2 {
		t.Errorf("expected 2 lots, got %d", in.Lots)
	}
	if in.StopLoss != broker.Points(8) || in.TrailingStop != broker.Points(8) {
		t.Errorf("unexpected stops %+v %+v", in.StopLoss, in.TrailingStop)
	}
}

func TestBreakout_ShortEntry(t *testing.T) {
	b := newTestBreakout(t)
	ctx := contextFor([]float64{100, 100, 100, 100, 95}, 0)

	if err := b.OnBar(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	intents := ctx.Intents()
	if len(intents) != 1 || intents[0].Direction != core.Sell {
		t.Fatalf("expected a short entry, got %+v", intents)
	}
}

func TestBreakout_ExitLong(t *testing.T) {
	b := newTestBreakout(t)
	// prior 2 lows: 99, 99; close 97 breaks down
	ctx := contextFor([]float64{100, 100, 100, 100, 97}, 2)

	if err := b.OnBar(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	intents := ctx.Intents()
	if len(intents) != 1 || !intents[0].CloseAll {
		t.Fatalf("expected close-all, got %+v", intents)
	}
}

func TestBreakout_HoldsInsideChannel(t *testing.T) {
	b := newTestBreakout(t)
	ctx := contextFor([]float64{100, 100, 100, 100, 100.5}, 0)

	if err := b.OnBar(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ctx.Intents()) != 0 {
		t.Errorf("expected no orders, got %d", len(ctx.Intents()))
	}
}

func TestBreakout_InitValidation(t *testing.T) {
	b := New()
	if err := b.Init(strategy.Config{Params: map[string]any{"risk_pct": 0.0}}); err == nil {
		t.Error("expected error for zero risk")
	}
}
