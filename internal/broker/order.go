package broker

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/quant/internal/core"
)

// OffsetKind selects how an offset is measured.
type OffsetKind int

const (
	// OffsetNone means the offset is unset.
	OffsetNone OffsetKind = iota
	// OffsetPoints is an absolute price distance.
	OffsetPoints
	// OffsetPercent is a distance in percent of the base price.
	OffsetPercent
)

func (k OffsetKind) String() string {
	switch k {
	case OffsetNone:
		return "none"
	case OffsetPoints:
		return "points"
	case OffsetPercent:
		return "percent"
	default:
		return fmt.Sprintf("OffsetKind(%d)", int(k))
	}
}

// Offset is a take-profit, stop-loss or trailing-stop distance.
type Offset struct {
	Kind  OffsetKind `json:"kind"`
	Value float64    `json:"value"`
}

// Points returns an offset of v price points.
func Points(v float64) Offset {
	return Offset{Kind: OffsetPoints, Value: v}
}

// Percent returns an offset of v percent, so Percent(1) is one percent.
func Percent(v float64) Offset {
	return Offset{Kind: OffsetPercent, Value: v}
}

// IsSet reports whether the offset was given.
func (o Offset) IsSet() bool {
	return o.Kind != OffsetNone
}

// Validate rejects unknown kinds, non-positive magnitudes and percentages of
// 100 or more.
func (o Offset) Validate(name string) error {
	switch o.Kind {
	case OffsetNone:
		return nil
	case OffsetPoints, OffsetPercent:
		if o.Value <= 0 || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return core.WrapError(core.ErrInvalidOffset, fmt.Errorf("%s %s %v", name, o.Kind, o.Value))
		}
		if o.Kind == OffsetPercent && o.Value >= 100 {
			return core.WrapError(core.ErrInvalidOffset, fmt.Errorf("%s %v%% is not below 100%%", name, o.Value))
		}
		return nil
	default:
		return core.WrapError(core.ErrInvalidOffset, fmt.Errorf("%s has unknown kind %s", name, o.Kind))
	}
}

// Away returns the price dir·offset away from base: profit side for dir +1,
// loss side for dir -1.
func (o Offset) Away(base float64, dir core.Direction) float64 {
	if o.Kind == OffsetPercent {
		return base * (1 + dir.Sign()*o.Value/100)
	}
	return base + dir.Sign()*o.Value
}

// PriceKind selects how a requested order price is interpreted.
type PriceKind int

const (
	// PriceUnset uses the reference price, producing a market order.
	PriceUnset PriceKind = iota
	// PriceAbsolute is a literal price.
	PriceAbsolute
	// PricePoints is the reference price plus a signed point offset.
	PricePoints
	// PricePercent is the reference price scaled by a signed percent offset.
	PricePercent
)

// PriceSpec is the requested price of an intent.
type PriceSpec struct {
	Kind  PriceKind
	Value float64
}

// At requests a literal price.
func At(price float64) PriceSpec {
	return PriceSpec{Kind: PriceAbsolute, Value: price}
}

// OffsetPointsFrom requests the reference price plus points.
func OffsetPointsFrom(points float64) PriceSpec {
	return PriceSpec{Kind: PricePoints, Value: points}
}

// OffsetPercentFrom requests the reference price plus pct percent.
func OffsetPercentFrom(pct float64) PriceSpec {
	return PriceSpec{Kind: PricePercent, Value: pct}
}

func (p PriceSpec) resolve(ref float64) (float64, error) {
	switch p.Kind {
	case PriceUnset:
		return ref, nil
	case PriceAbsolute:
		return p.Value, nil
	case PricePoints:
		return ref + p.Value, nil
	case PricePercent:
		return ref * (1 + p.Value/100), nil
	default:
		return 0, core.WrapError(core.ErrInvalidOffset, fmt.Errorf("unknown price kind %d", p.Kind))
	}
}

// Intent is a trading request emitted by a strategy.
type Intent struct {
	Instrument   string
	Direction    core.Direction
	Lots         int64 // 0 uses the contract default
	Price        PriceSpec
	TakeProfit   Offset
	StopLoss     Offset
	TrailingStop Offset
	CloseAll     bool
}

// Validate checks the offsets and size of the intent.
func (in Intent) Validate() error {
	if in.Instrument == "" {
		return ErrInvalidInstrument
	}
	if !in.CloseAll && !in.Direction.IsValid() {
		return core.WrapError(core.ErrConfigInvalid, ErrInvalidDirection)
	}
	if in.Lots < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%w: %d", ErrInvalidLots, in.Lots))
	}
	if err := in.TakeProfit.Validate("take-profit"); err != nil {
		return err
	}
	if err := in.StopLoss.Validate("stop-loss"); err != nil {
		return err
	}
	return in.TrailingStop.Validate("trailing-stop")
}

// TrailPrice returns the trailing-stop level offset below (buys) or above
// (sells) ref.
func TrailPrice(ref float64, dir core.Direction, offset Offset) float64 {
	return offset.Away(ref, dir.Opposite())
}

// Tighten moves a trailing stop toward the market, never away from it.
func Tighten(current, candidate float64, dir core.Direction) float64 {
	if current == 0 {
		return candidate
	}
	if dir == core.Buy {
		return math.Max(current, candidate)
	}
	return math.Min(current, candidate)
}

// Classify returns MARKET, STOP or LIMIT for a price relative to ref.
func Classify(dir core.Direction, price, ref float64) ExecType {
	switch {
	case price == ref:
		return ExecMarket
	case (price > ref) == (dir == core.Buy):
		return ExecStop
	default:
		return ExecLimit
	}
}

// Resolver turns intents into orders and numbers them sequentially.
type Resolver struct {
	seq OrderID
}

// NewResolver creates a Resolver whose first order is #1.
func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) next() OrderID {
	r.seq++
	return r.seq
}

// Resolve converts an intent into an order against the current bar.
// position is the instrument's signed net position and sizes CLOSE_ALL.
// A CLOSE_ALL intent on a flat instrument returns a nil order.
func (r *Resolver) Resolve(in Intent, c core.Contract, bar core.Bar, position int64) (*Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ref := bar.Price(c.ExecMode)

	if in.CloseAll {
		if position == 0 {
			return nil, nil
		}
		o := r.newOrder(c, bar.Time)
		o.Direction = core.DirectionOf(position).Opposite()
		o.Lots = abs(position)
		o.RequestedPrice = ref
		o.Price = ref
		o.Type = ExecCloseAll
		return o, nil
	}

	lots := in.Lots
	if lots == 0 {
		lots = c.Lots
	}
	if lots <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%w: %s default lots %d", ErrInvalidLots, c.Instrument, lots))
	}

	price, err := in.Price.resolve(ref)
	if err != nil {
		return nil, err
	}
	if price <= 0 || math.IsNaN(price) {
		return nil, core.WrapError(core.ErrInvalidPrice, fmt.Errorf("%s resolved to %.4f", in.Instrument, price))
	}

	var tp, sl, trail float64
	if in.TakeProfit.IsSet() {
		tp = in.TakeProfit.Away(price, in.Direction)
	}
	if in.StopLoss.IsSet() {
		sl = in.StopLoss.Away(price, in.Direction.Opposite())
	}
	if in.TrailingStop.IsSet() {
		trail = TrailPrice(price, in.Direction, in.TrailingStop)
	}
	for _, t := range []struct {
		name  string
		set   bool
		price float64
	}{
		{"take profit", in.TakeProfit.IsSet(), tp},
		{"stop loss", in.StopLoss.IsSet(), sl},
		{"trailing stop", in.TrailingStop.IsSet(), trail},
	} {
		if t.set && t.price <= 0 {
			return nil, core.WrapError(core.ErrInvalidOffset, fmt.Errorf("%s %s resolved to %.4f from %.4f", in.Instrument, t.name, t.price, price))
		}
	}

	o := r.newOrder(c, bar.Time)
	o.Direction = in.Direction
	o.Lots = lots
	o.RequestedPrice = price
	o.Price = price
	o.Type = Classify(in.Direction, price, ref)
	o.TakeProfit = tp
	o.StopLoss = sl
	if in.TrailingStop.IsSet() {
		o.TrailingStop = trail
		o.TrailingOffset = in.TrailingStop
	}
	return o, nil
}

// Exit builds a triggered exit order closing lots of the parent lot at price.
func (r *Resolver) Exit(typ ExecType, parent core.LotID, lotDir core.Direction, lots int64, price float64, c core.Contract, t time.Time) *Order {
	o := r.newOrder(c, t)
	o.Direction = lotDir.Opposite()
	o.Lots = lots
	o.RequestedPrice = price
	o.Price = price
	o.Type = typ
	o.Parent = parent
	return o
}

// Convert turns a triggered pending order into a market order filling at price.
func Convert(o *Order, price float64) {
	o.TriggeredFrom = o.Type
	o.Type = ExecMarket
	o.Price = price
}

func (r *Resolver) newOrder(c core.Contract, t time.Time) *Order {
	return &Order{
		ID:             r.next(),
		Instrument:     c.Instrument,
		CommissionRate: c.CommissionRate,
		MarginRate:     c.MarginRate,
		Multiplier:     c.Multiplier,
		Time:           t,
		Status:         OrderStatusCreated,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
