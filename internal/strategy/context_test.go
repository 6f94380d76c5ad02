package strategy

import (
	"testing"
	"time"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccount struct {
	position int64
}

func (s stubAccount) Position(string) int64   { return s.position }
func (s stubAccount) AvgPrice(string) float64 { return 100 }
func (s stubAccount) Equity() float64         { return 5000 }
func (s stubAccount) Cash() float64           { return 4000 }

func newTestContext(pos int64) *Context {
	bars := []core.Bar{
		{Instrument: "RB", Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 3, Low: 1, Close: 2},
		{Instrument: "RB", Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 2, High: 5, Low: 2, Close: 4},
	}
	return NewContext(bars[1], bars, core.Contract{Instrument: "RB"}, stubAccount{position: pos})
}

func TestContext_BuySellWithOptions(t *testing.T) {
	ctx := newTestContext(0)

	ctx.Buy(2, WithStopLoss(broker.Points(5)), WithTakeProfit(broker.Percent(3)))
	ctx.Sell(0, WithPrice(broker.At(6)), WithTrailingStop(broker.Points(1)))

	intents := ctx.Intents()
	require.Len(t, intents, 2)
	assert.Equal(t, core.Buy, intents[0].Direction)
	assert.Equal(t, int64(2), intents[0].Lots)
	assert.Equal(t, broker.Points(5), intents[0].StopLoss)
	assert.Equal(t, broker.Percent(3), intents[0].TakeProfit)
	assert.Equal(t, "RB", intents[0].Instrument)

	assert.Equal(t, core.Sell, intents[1].Direction)
	assert.Equal(t, broker.At(6), intents[1].Price)
	assert.Equal(t, broker.Points(1), intents[1].TrailingStop)
}

func TestContext_ExitAllSupersedesOtherOrders(t *testing.T) {
	ctx := newTestContext(3)

	ctx.Buy(1)
	ctx.ExitAll()
	ctx.Sell(1)

	intents := ctx.Intents()
	require.Len(t, intents, 1)
	assert.True(t, intents[0].CloseAll)
}

func TestContext_AccountView(t *testing.T) {
	ctx := newTestContext(-2)

	assert.Equal(t, int64(-2), ctx.Position())
	assert.Equal(t, 100.0, ctx.AvgPrice())
	assert.Equal(t, 5000.0, ctx.Equity())
	assert.Equal(t, 4000.0, ctx.Cash())
	assert.Equal(t, []float64{2, 4}, ctx.Closes())
	assert.Equal(t, []float64{3, 5}, ctx.Highs())
	assert.Equal(t, []float64{1, 2}, ctx.Lows())
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), ctx.Now())
}

func TestContext_CancelPending(t *testing.T) {
	ctx := newTestContext(0)
	assert.False(t, ctx.CancelRequested())
	ctx.CancelPending()
	assert.True(t, ctx.CancelRequested())
}
