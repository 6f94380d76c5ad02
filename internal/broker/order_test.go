package broker

import (
	"testing"
	"time"

	"github.com/newthinker/quant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = core.Contract{
	Instrument:     "RB",
	CommissionRate: 0.0001,
	MarginRate:     0.1,
	Multiplier:     10,
	Lots:           1,
	ExecMode:       core.PriceClose,
	TrailingMode:   core.PriceClose,
}

func testBar(open, high, low, close float64) core.Bar {
	return core.Bar{
		Instrument: "RB",
		Time:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		dir   core.Direction
		price float64
		want  ExecType
	}{
		{"buy at reference", core.Buy, 100, ExecMarket},
		{"sell at reference", core.Sell, 100, ExecMarket},
		{"buy above", core.Buy, 105, ExecStop},
		{"buy below", core.Buy, 95, ExecLimit},
		{"sell below", core.Sell, 95, ExecStop},
		{"sell above", core.Sell, 105, ExecLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.dir, tt.price, 100))
		})
	}
}

func TestResolve_MarketWithPointOffsets(t *testing.T) {
	r := NewResolver()
	in := Intent{
		Instrument: "RB",
		Direction:  core.Buy,
		Lots:       2,
		TakeProfit: Points(10),
		StopLoss:   Points(5),
	}

	o, err := r.Resolve(in, testContract, testBar(98, 102, 97, 100), 0)
	require.NoError(t, err)
	assert.Equal(t, OrderID(1), o.ID)
	assert.Equal(t, ExecMarket, o.Type)
	assert.Equal(t, OrderStatusCreated, o.Status)
	assert.Equal(t, 100.0, o.Price)
	assert.Equal(t, 110.0, o.TakeProfit)
	assert.Equal(t, 95.0, o.StopLoss)
	assert.Equal(t, int64(2), o.SignedLots())
	assert.Equal(t, 10.0, o.Multiplier)
}

func TestResolve_SellPercentOffsets(t *testing.T) {
	r := NewResolver()
	in := Intent{
		Instrument:   "RB",
		Direction:    core.Sell,
		TakeProfit:   Percent(10),
		StopLoss:     Percent(5),
		TrailingStop: Percent(2),
	}

	o, err := r.Resolve(in, testContract, testBar(98, 102, 97, 100), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), o.SignedLots(), "default lots come from the contract")
	assert.InDelta(t, 90.0, o.TakeProfit, 1e-9)
	assert.InDelta(t, 105.0, o.StopLoss, 1e-9)
	assert.InDelta(t, 102.0, o.TrailingStop, 1e-9)
	assert.Equal(t, Percent(2), o.TrailingOffset)
}

func TestResolve_PriceSpecs(t *testing.T) {
	bar := testBar(98, 102, 97, 100)
	tests := []struct {
		name  string
		dir   core.Direction
		spec  PriceSpec
		price float64
		typ   ExecType
	}{
		{"absolute limit", core.Buy, At(95), 95, ExecLimit},
		{"points stop", core.Buy, OffsetPointsFrom(3), 103, ExecStop},
		{"negative points sell stop", core.Sell, OffsetPointsFrom(-2), 98, ExecStop},
		{"percent sell limit", core.Sell, OffsetPercentFrom(1), 101, ExecLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewResolver().Resolve(Intent{Instrument: "RB", Direction: tt.dir, Price: tt.spec}, testContract, bar, 0)
			require.NoError(t, err)
			assert.InDelta(t, tt.price, o.Price, 1e-9)
			assert.Equal(t, tt.typ, o.Type)
		})
	}
}

func TestResolve_OpenExecMode(t *testing.T) {
	c := testContract
	c.ExecMode = core.PriceOpen

	o, err := NewResolver().Resolve(Intent{Instrument: "RB", Direction: core.Buy}, c, testBar(98, 102, 97, 100), 0)
	require.NoError(t, err)
	assert.Equal(t, 98.0, o.Price)
	assert.Equal(t, ExecMarket, o.Type)
}

func TestResolve_TriggersUseOrderPrice(t *testing.T) {
	in := Intent{Instrument: "RB", Direction: core.Buy, Price: At(90), TakeProfit: Points(5), StopLoss: Points(5)}

	o, err := NewResolver().Resolve(in, testContract, testBar(98, 102, 97, 100), 0)
	require.NoError(t, err)
	assert.Equal(t, ExecLimit, o.Type)
	assert.Equal(t, 95.0, o.TakeProfit)
	assert.Equal(t, 85.0, o.StopLoss)
}

func TestResolve_CloseAll(t *testing.T) {
	r := NewResolver()

	o, err := r.Resolve(Intent{Instrument: "RB", CloseAll: true}, testContract, testBar(98, 102, 97, 100), -3)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, ExecCloseAll, o.Type)
	assert.Equal(t, core.Buy, o.Direction)
	assert.Equal(t, int64(3), o.Lots)
	assert.Equal(t, 100.0, o.Price)

	flat, err := r.Resolve(Intent{Instrument: "RB", CloseAll: true}, testContract, testBar(98, 102, 97, 100), 0)
	require.NoError(t, err)
	assert.Nil(t, flat)
}

func TestResolve_InvalidOffsetsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		in   Intent
	}{
		{"zero take-profit", Intent{Instrument: "RB", Direction: core.Buy, TakeProfit: Points(0)}},
		{"negative stop-loss", Intent{Instrument: "RB", Direction: core.Buy, StopLoss: Percent(-1)}},
		{"negative trailing", Intent{Instrument: "RB", Direction: core.Sell, TrailingStop: Points(-3)}},
		{"unknown kind", Intent{Instrument: "RB", Direction: core.Sell, StopLoss: Offset{Kind: 9, Value: 1}}},
		{"whole-price stop-loss", Intent{Instrument: "RB", Direction: core.Buy, StopLoss: Percent(100)}},
		{"oversized percent take-profit", Intent{Instrument: "RB", Direction: core.Sell, TakeProfit: Percent(150)}},
		{"stop-loss below zero", Intent{Instrument: "RB", Direction: core.Buy, StopLoss: Points(100)}},
		{"trailing below zero", Intent{Instrument: "RB", Direction: core.Buy, TrailingStop: Points(250)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver().Resolve(tt.in, testContract, testBar(98, 102, 97, 100), 0)
			assert.ErrorIs(t, err, core.ErrInvalidOffset)
		})
	}
}

func TestResolve_InvalidSizeAndPrice(t *testing.T) {
	r := NewResolver()
	bar := testBar(98, 102, 97, 100)

	_, err := r.Resolve(Intent{Instrument: "RB", Direction: core.Buy, Lots: -1}, testContract, bar, 0)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	noDefault := testContract
	noDefault.Lots = 0
	_, err = r.Resolve(Intent{Instrument: "RB", Direction: core.Buy}, noDefault, bar, 0)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = r.Resolve(Intent{Instrument: "RB", Direction: core.Buy, Price: OffsetPointsFrom(-200)}, testContract, bar, 0)
	assert.ErrorIs(t, err, core.ErrInvalidPrice)

	_, err = r.Resolve(Intent{Instrument: "RB"}, testContract, bar, 0)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestResolver_SequentialIDs(t *testing.T) {
	r := NewResolver()
	bar := testBar(98, 102, 97, 100)

	a, _ := r.Resolve(Intent{Instrument: "RB", Direction: core.Buy}, testContract, bar, 0)
	b := r.Exit(ExecStopLoss, 7, core.Buy, 1, 95, testContract, bar.Time)

	assert.Equal(t, OrderID(1), a.ID)
	assert.Equal(t, OrderID(2), b.ID)
	assert.Equal(t, core.Sell, b.Direction)
	assert.Equal(t, core.LotID(7), b.Parent)
	assert.True(t, b.Type.IsTriggeredExit())
}

func TestTrailing(t *testing.T) {
	assert.Equal(t, 95.0, TrailPrice(100, core.Buy, Points(5)))
	assert.Equal(t, 105.0, TrailPrice(100, core.Sell, Points(5)))

	assert.Equal(t, 97.0, Tighten(95, 97, core.Buy))
	assert.Equal(t, 97.0, Tighten(97, 93, core.Buy), "long trail never loosens")
	assert.Equal(t, 103.0, Tighten(105, 103, core.Sell))
	assert.Equal(t, 103.0, Tighten(103, 108, core.Sell), "short trail never loosens")
	assert.Equal(t, 99.0, Tighten(0, 99, core.Sell))
}

func TestConvert(t *testing.T) {
	o := &Order{Type: ExecStop, Price: 105, RequestedPrice: 105}
	Convert(o, 107)

	assert.Equal(t, ExecMarket, o.Type)
	assert.Equal(t, ExecStop, o.TriggeredFrom)
	assert.Equal(t, 107.0, o.Price)
	assert.Equal(t, 105.0, o.RequestedPrice)
}
