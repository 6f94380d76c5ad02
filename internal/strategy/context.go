package strategy

import (
	"time"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
)

// Account is the read-only ledger view given to strategies.
type Account interface {
	Position(instrument string) int64
	AvgPrice(instrument string) float64
	Equity() float64
	Cash() float64
}

// OrderOption customises an intent.
type OrderOption func(*broker.Intent)

// WithPrice sets a requested price. A price away from the reference makes a
// limit or stop order.
func WithPrice(p broker.PriceSpec) OrderOption {
	return func(in *broker.Intent) { in.Price = p }
}

// WithTakeProfit attaches a take-profit offset.
func WithTakeProfit(o broker.Offset) OrderOption {
	return func(in *broker.Intent) { in.TakeProfit = o }
}

// WithStopLoss attaches a stop-loss offset.
func WithStopLoss(o broker.Offset) OrderOption {
	return func(in *broker.Intent) { in.StopLoss = o }
}

// WithTrailingStop attaches a trailing-stop offset.
func WithTrailingStop(o broker.Offset) OrderOption {
	return func(in *broker.Intent) { in.TrailingStop = o }
}

// Context is handed to Strategy.OnBar for one bar of one instrument.
type Context struct {
	Bar      core.Bar
	History  []core.Bar // oldest first, ending with Bar
	Contract core.Contract

	account  Account
	intents  []broker.Intent
	closeAll bool
	cancel   bool
}

// NewContext creates the context for one strategy call.
func NewContext(bar core.Bar, history []core.Bar, c core.Contract, account Account) *Context {
	return &Context{
		Bar:      bar,
		History:  history,
		Contract: c,
		account:  account,
	}
}

// Now returns the bar time.
func (c *Context) Now() time.Time {
	return c.Bar.Time
}

// Buy requests lots to buy; 0 uses the contract default.
func (c *Context) Buy(lots int64, opts ...OrderOption) {
	c.order(core.Buy, lots, opts)
}

// Sell requests lots to sell; 0 uses the contract default.
func (c *Context) Sell(lots int64, opts ...OrderOption) {
	c.order(core.Sell, lots, opts)
}

func (c *Context) order(dir core.Direction, lots int64, opts []OrderOption) {
	if c.closeAll {
		return
	}
	in := broker.Intent{
		Instrument: c.Bar.Instrument,
		Direction:  dir,
		Lots:       lots,
	}
	for _, opt := range opts {
		opt(&in)
	}
	c.intents = append(c.intents, in)
}

// ExitAll flattens the instrument. It replaces every other order of this
// call, including ones placed after it.
func (c *Context) ExitAll() {
	c.closeAll = true
	c.intents = []broker.Intent{{Instrument: c.Bar.Instrument, CloseAll: true}}
}

// CancelPending withdraws the instrument's resting limit and stop orders
// before this call's orders are processed.
func (c *Context) CancelPending() {
	c.cancel = true
}

// Intents returns the orders requested during the call.
func (c *Context) Intents() []broker.Intent {
	return c.intents
}

// CancelRequested reports whether CancelPending was called.
func (c *Context) CancelRequested() bool {
	return c.cancel
}

// Position returns the instrument's signed net position.
func (c *Context) Position() int64 {
	return c.account.Position(c.Bar.Instrument)
}

// AvgPrice returns the instrument's average entry price.
func (c *Context) AvgPrice() float64 {
	return c.account.AvgPrice(c.Bar.Instrument)
}

// Equity returns account equity.
func (c *Context) Equity() float64 {
	return c.account.Equity()
}

// Cash returns equity minus margin.
func (c *Context) Cash() float64 {
	return c.account.Cash()
}

// Closes returns the close prices of the history window.
func (c *Context) Closes() []float64 {
	return c.field(func(b core.Bar) float64 { return b.Close })
}

// Highs returns the high prices of the history window.
func (c *Context) Highs() []float64 {
	return c.field(func(b core.Bar) float64 { return b.High })
}

// Lows returns the low prices of the history window.
func (c *Context) Lows() []float64 {
	return c.field(func(b core.Bar) float64 { return b.Low })
}

func (c *Context) field(get func(core.Bar) float64) []float64 {
	out := make([]float64, len(c.History))
	for i, b := range c.History {
		out[i] = get(b)
	}
	return out
}
