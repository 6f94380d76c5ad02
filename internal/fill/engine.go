package fill

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
	ts "github.com/newthinker/quant/internal/timeseries"
)

// ErrLotNotFound indicates a triggered exit whose parent lot is gone.
var ErrLotNotFound = errors.New("fill: parent lot not found")

// RuinHandler is called once when equity or cash first falls to zero or below.
type RuinHandler func(at time.Time, equity, cash float64)

// Engine owns the ledger and the resting-lot book of one run.
type Engine struct {
	initialCash float64
	store       *ts.Store
	book        *Book
	trades      []Trade
	contracts   map[string]core.Contract
	symbols     []string
	marks       map[string]float64
	barTimes    map[string]time.Time
	halted      map[string]bool
	clock       time.Time
	realized    float64
	commission  float64
	ruined      bool
	onRuin      RuinHandler
	logger      *zap.Logger
}

// NewEngine creates an Engine funded with initialCash.
func NewEngine(initialCash float64, logger ...*zap.Logger) *Engine {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &Engine{
		initialCash: initialCash,
		store:       ts.NewStore(),
		book:        NewBook(),
		contracts:   make(map[string]core.Contract),
		marks:       make(map[string]float64),
		barTimes:    make(map[string]time.Time),
		halted:      make(map[string]bool),
		logger:      log,
	}
}

// OnRuin registers the ruin callback. Cash and margin are shared by every
// instrument, so ruin halts all of them, not only the one that caused it.
func (e *Engine) OnRuin(h RuinHandler) {
	e.onRuin = h
}

// Register adds an instrument to the account.
func (e *Engine) Register(c core.Contract) error {
	if c.Instrument == "" {
		return core.WrapError(core.ErrConfigInvalid, broker.ErrInvalidInstrument)
	}
	if _, ok := e.contracts[c.Instrument]; ok {
		return core.WrapError(core.ErrDuplicateFeed, fmt.Errorf("instrument %s", c.Instrument))
	}
	if c.Multiplier <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s multiplier %v", c.Instrument, c.Multiplier))
	}
	if c.CommissionRate < 0 || c.MarginRate < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s rates must not be negative", c.Instrument))
	}
	e.contracts[c.Instrument] = c
	e.symbols = append(e.symbols, c.Instrument)
	sort.Strings(e.symbols)
	return nil
}

// MarkToMarket revalues an instrument at the bar close. Position and average
// price carry forward, commission and realized get a zero entry, then margin,
// unrealized, equity and cash are written.
func (e *Engine) MarkToMarket(bar core.Bar) error {
	c, ok := e.contracts[bar.Instrument]
	if !ok {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown instrument %s", bar.Instrument))
	}
	e.observe(bar)
	t := bar.Time
	sym := bar.Instrument
	pos := e.book.Net(sym)
	avg := e.book.AvgPrice(sym)

	writes := []struct {
		field ts.Field
		value float64
		add   bool
	}{
		{ts.Position, float64(pos), false},
		{ts.AvgPrice, avg, false},
		{ts.Margin, c.MarginRate * math.Abs(float64(pos)) * c.Multiplier * bar.Close, false},
		{ts.Commission, 0, true},
		{ts.Realized, 0, true},
		{ts.Unrealized, unrealized(bar.Close, avg, pos, c.Multiplier), false},
	}
	for _, w := range writes {
		var err error
		if w.add {
			err = e.store.Accumulate(sym, w.field, t, w.value)
		} else {
			err = e.store.Set(sym, w.field, t, w.value)
		}
		if err != nil {
			return err
		}
	}
	return e.updateAccount()
}

// Apply executes a filled order against the book and the ledger and returns
// the completed pairs it produced.
func (e *Engine) Apply(o *broker.Order) ([]Trade, error) {
	c, ok := e.contracts[o.Instrument]
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown instrument %s", o.Instrument))
	}
	if e.halted[o.Instrument] {
		return nil, core.WrapError(core.ErrInstrumentHalted, fmt.Errorf("order %d", o.ID))
	}
	if !o.Type.ChangesPosition() {
		return nil, core.WrapError(core.ErrOrderRejected, fmt.Errorf("order %d of type %s cannot fill", o.ID, o.Type))
	}
	if err := o.Validate(); err != nil {
		return nil, core.WrapError(core.ErrOrderRejected, err)
	}

	at := e.fillTime(o)
	before := e.book.Net(o.Instrument)

	var trades []Trade
	if o.Type.IsTriggeredExit() {
		lot, ok := e.book.Get(o.Parent)
		if !ok || lot.Instrument != o.Instrument || lot.Direction != o.Direction.Opposite() {
			return nil, core.WrapError(core.ErrOrderRejected, fmt.Errorf("%w: order %d lot %d", ErrLotNotFound, o.ID, o.Parent))
		}
		o.Lots = lot.Remaining
		trades = append(trades, newTrade(lot, o, lot.Remaining, at))
		e.book.remove(lot.ID)
	} else {
		trades = e.net(o, at)
	}
	o.FilledAt = at

	pos := e.checkPosition(o, before)

	var pnl float64
	for _, tr := range trades {
		pnl += tr.PnL
	}
	fee := o.Commission(o.Lots)
	e.realized += pnl
	e.commission += fee

	mark, ok := e.marks[o.Instrument]
	if !ok {
		mark = o.Price
	}
	avg := e.book.AvgPrice(o.Instrument)
	sym := o.Instrument

	if err := e.store.Set(sym, ts.Position, at, float64(pos)); err != nil {
		return nil, err
	}
	if err := e.store.Set(sym, ts.AvgPrice, at, avg); err != nil {
		return nil, err
	}
	if err := e.store.Set(sym, ts.Margin, at, c.MarginRate*math.Abs(float64(pos))*c.Multiplier*o.Price); err != nil {
		return nil, err
	}
	if err := e.store.Accumulate(sym, ts.Commission, at, fee); err != nil {
		return nil, err
	}
	if err := e.store.Accumulate(sym, ts.Realized, at, pnl); err != nil {
		return nil, err
	}
	if err := e.store.Set(sym, ts.Unrealized, at, unrealized(mark, avg, pos, c.Multiplier)); err != nil {
		return nil, err
	}
	if err := e.updateAccount(); err != nil {
		return nil, err
	}

	equity := e.Equity()
	for i := range trades {
		trades[i].PositionAfter = pos
		trades[i].Equity = equity
	}
	e.trades = append(e.trades, trades...)

	e.logger.Debug("fill applied",
		zap.Int64("order", int64(o.ID)),
		zap.String("instrument", sym),
		zap.String("type", string(o.Type)),
		zap.Int64("lots", o.SignedLots()),
		zap.Float64("price", o.Price),
		zap.Int64("position", pos),
		zap.Float64("realized", pnl),
		zap.Float64("equity", equity),
	)
	return trades, nil
}

// net walks opposing lots oldest first and opens a lot for any remainder.
func (e *Engine) net(o *broker.Order, at time.Time) []Trade {
	remaining := o.Lots
	var trades []Trade

	if core.DirectionOf(e.book.Net(o.Instrument)) == o.Direction.Opposite() {
		for _, lot := range e.book.Lots(o.Instrument) {
			if remaining == 0 {
				break
			}
			matched := min(lot.Remaining, remaining)
			trades = append(trades, newTrade(lot, o, matched, at))
			lot.Remaining -= matched
			remaining -= matched
			if lot.Remaining == 0 {
				e.book.remove(lot.ID)
			}
		}
	}

	if remaining > 0 {
		e.book.open(o, remaining, at)
	}
	return trades
}

// updateAccount writes equity and cash and checks for ruin.
func (e *Engine) updateAccount() error {
	equity := e.Equity()
	cash := equity - e.TotalMargin()
	if err := e.store.Global(ts.Equity).Set(e.clock, equity); err != nil {
		return err
	}
	if err := e.store.Global(ts.Cash).Set(e.clock, cash); err != nil {
		return err
	}
	if !e.ruined && (equity <= 0 || cash <= 0) {
		e.ruined = true
		for _, sym := range e.symbols {
			e.halted[sym] = true
		}
		e.logger.Warn("account ruined, trading halted",
			zap.Time("time", e.clock),
			zap.Float64("equity", equity),
			zap.Float64("cash", cash),
		)
		if e.onRuin != nil {
			e.onRuin(e.clock, equity, cash)
		}
	}
	return nil
}

func (e *Engine) observe(bar core.Bar) {
	e.marks[bar.Instrument] = bar.Close
	e.barTimes[bar.Instrument] = bar.Time
	if bar.Time.After(e.clock) {
		e.clock = bar.Time
	}
}

// fillTime is the instrument's current bar, or the order's own time before
// the first bar was marked.
func (e *Engine) fillTime(o *broker.Order) time.Time {
	if t, ok := e.barTimes[o.Instrument]; ok {
		return t
	}
	if o.Time.After(e.clock) {
		e.clock = o.Time
	}
	return o.Time
}

func unrealized(mark, avg float64, pos int64, mult float64) float64 {
	if pos == 0 {
		return 0
	}
	return (mark - avg) * float64(pos) * mult
}

// Equity returns initial cash plus realized and unrealized profit less commission.
func (e *Engine) Equity() float64 {
	equity := e.initialCash + e.realized - e.commission
	for _, sym := range e.symbols {
		equity += e.store.Last(sym, ts.Unrealized)
	}
	return equity
}

// TotalMargin returns the latest margin summed over instruments.
func (e *Engine) TotalMargin() float64 {
	var margin float64
	for _, sym := range e.symbols {
		margin += e.store.Last(sym, ts.Margin)
	}
	return margin
}

// Cash returns equity minus margin.
func (e *Engine) Cash() float64 {
	return e.Equity() - e.TotalMargin()
}

// Position returns the signed net position of an instrument.
func (e *Engine) Position(instrument string) int64 {
	return e.book.Net(instrument)
}

// AvgPrice returns the average entry price of an instrument.
func (e *Engine) AvgPrice(instrument string) float64 {
	return e.book.AvgPrice(instrument)
}

// Halted reports whether the instrument stopped trading after ruin.
func (e *Engine) Halted(instrument string) bool {
	return e.halted[instrument]
}

// Ruined reports whether equity or cash reached zero.
func (e *Engine) Ruined() bool {
	return e.ruined
}

// InitialCash returns the starting balance.
func (e *Engine) InitialCash() float64 {
	return e.initialCash
}

// RealizedTotal returns cumulative realized profit.
func (e *Engine) RealizedTotal() float64 {
	return e.realized
}

// CommissionTotal returns cumulative commission.
func (e *Engine) CommissionTotal() float64 {
	return e.commission
}

// Book returns the resting-lot book.
func (e *Engine) Book() *Book {
	return e.book
}

// Store returns the ledger series.
func (e *Engine) Store() *ts.Store {
	return e.store
}

// Trades returns the completed-trade log.
func (e *Engine) Trades() []Trade {
	out := make([]Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Contract returns the registered terms of an instrument.
func (e *Engine) Contract(instrument string) (core.Contract, bool) {
	c, ok := e.contracts[instrument]
	return c, ok
}

// Instruments returns the registered instruments, sorted.
func (e *Engine) Instruments() []string {
	out := make([]string, len(e.symbols))
	copy(out, e.symbols)
	return out
}

// checkPosition returns the instrument's net position after o was booked. The
// book has already changed at this point, so a mismatch is a netting bug and
// panics rather than leaving the book and the ledger series out of step.
func (e *Engine) checkPosition(o *broker.Order, before int64) int64 {
	pos := e.book.Net(o.Instrument)
	if want := before + o.SignedLots(); pos != want {
		panic(fmt.Sprintf("fill: position %d after order %d, want %d", pos, o.ID, want))
	}
	return pos
}
