package core

import "time"

// Direction is the side of an order, fill or lot.
type Direction int

const (
	Buy  Direction = 1
	Sell Direction = -1
)

// Sign returns +1 for buys and -1 for sells.
func (d Direction) Sign() float64 {
	return float64(d)
}

// Opposite returns the closing side.
func (d Direction) Opposite() Direction {
	return -d
}

// IsValid reports whether d is Buy or Sell.
func (d Direction) IsValid() bool {
	return d == Buy || d == Sell
}

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "NONE"
	}
}

// DirectionOf returns the direction of a signed lot quantity, or 0 when flat.
func DirectionOf(lots int64) Direction {
	switch {
	case lots > 0:
		return Buy
	case lots < 0:
		return Sell
	default:
		return 0
	}
}

// Bar represents one OHLC candle of an instrument
type Bar struct {
	Instrument string
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
}

// IsValid checks the bar has a positive, internally consistent range
func (b Bar) IsValid() bool {
	if b.Instrument == "" || b.Time.IsZero() {
		return false
	}
	if b.Low <= 0 || b.High < b.Low {
		return false
	}
	return b.Open >= b.Low && b.Open <= b.High && b.Close >= b.Low && b.Close <= b.High
}

// PriceMode selects which price of a bar is used as a reference.
type PriceMode string

const (
	PriceOpen  PriceMode = "open"
	PriceClose PriceMode = "close"
)

// Price returns the bar price selected by mode. Unknown modes use the close.
func (b Bar) Price(mode PriceMode) float64 {
	if mode == PriceOpen {
		return b.Open
	}
	return b.Close
}

// LotID identifies a resting lot for the lifetime of a run.
type LotID int64

// Contract holds the static trading terms of one instrument.
type Contract struct {
	Instrument     string
	CommissionRate float64 // fraction of notional charged per fill
	MarginRate     float64 // fraction of notional held as margin
	Multiplier     float64 // currency per point per lot
	Lots           int64   // default order size
	ExecMode       PriceMode
	TrailingMode   PriceMode
}

// Notional returns the currency value of lots at price.
func (c Contract) Notional(lots int64, price float64) float64 {
	return float64(lots) * price * c.Multiplier
}
