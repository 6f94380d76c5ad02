// Package feed supplies historical bars to a backtest, one instrument per feed.
package feed

import (
	"fmt"
	"time"

	"github.com/newthinker/quant/internal/core"
)

// Feed yields successive bars of one instrument.
type Feed interface {
	// Contract returns the static trading terms of the instrument.
	Contract() core.Contract
	// Next returns the next bar, or false once the source is exhausted.
	Next() (core.Bar, bool, error)
}

// Slice is an in-memory feed.
type Slice struct {
	contract core.Contract
	bars     []core.Bar
	pos      int
}

// NewSlice creates a feed over preloaded bars. Bars without an instrument
// take the contract's.
func NewSlice(c core.Contract, bars []core.Bar) *Slice {
	out := make([]core.Bar, len(bars))
	for i, b := range bars {
		if b.Instrument == "" {
			b.Instrument = c.Instrument
		}
		out[i] = b
	}
	return &Slice{contract: c, bars: out}
}

// Contract returns the instrument terms.
func (s *Slice) Contract() core.Contract {
	return s.contract
}

// Next returns the next bar.
func (s *Slice) Next() (core.Bar, bool, error) {
	if s.pos >= len(s.bars) {
		return core.Bar{}, false, nil
	}
	b := s.bars[s.pos]
	s.pos++
	return b, true, nil
}

// Reset rewinds the feed to its first bar.
func (s *Slice) Reset() {
	s.pos = 0
}

// Validate checks the contract terms of a feed.
func Validate(c core.Contract) error {
	if c.Instrument == "" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("feed has no instrument"))
	}
	if c.Multiplier <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: multiplier must be positive", c.Instrument))
	}
	if c.CommissionRate < 0 || c.MarginRate < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: rates must not be negative", c.Instrument))
	}
	if c.Lots < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: lots must not be negative", c.Instrument))
	}
	for _, m := range []core.PriceMode{c.ExecMode, c.TrailingMode} {
		if m != core.PriceOpen && m != core.PriceClose {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s: price mode %q must be open or close", c.Instrument, m))
		}
	}
	return nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
