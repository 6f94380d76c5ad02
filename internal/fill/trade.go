package fill

import (
	"time"

	"github.com/newthinker/quant/internal/broker"
)

// Trade is one completed pair in the trade log: a slice of an opening lot
// matched against the fill that closed it.
type Trade struct {
	Instrument string       `json:"instrument"`
	Entry      Lot          `json:"entry"`
	Exit       broker.Order `json:"exit"`
	Time       time.Time    `json:"time"`
	Lots       int64        `json:"lots"`
	EntryPrice float64      `json:"entry_price"`
	ExitPrice  float64      `json:"exit_price"`
	Commission float64      `json:"commission"`
	PnL        float64      `json:"pnl"`
	// PositionAfter is the instrument's net position once the whole fill applied.
	PositionAfter int64 `json:"position_after"`
	// Equity is the account equity once the whole fill applied.
	Equity float64 `json:"equity"`
}

// NetPnL returns realized profit less the pair's commission.
func (t Trade) NetPnL() float64 {
	return t.PnL - t.Commission
}

// IsWin returns true if the pair was profitable after commission
func (t Trade) IsWin() bool {
	return t.NetPnL() > 0
}

func newTrade(lot *Lot, o *broker.Order, matched int64, at time.Time) Trade {
	entry := *lot
	entry.Remaining = matched
	exit := *o
	exit.Lots = matched

	mult := lot.Multiplier
	return Trade{
		Instrument: lot.Instrument,
		Entry:      entry,
		Exit:       exit,
		Time:       at,
		Lots:       matched,
		EntryPrice: lot.EntryPrice,
		ExitPrice:  o.Price,
		Commission: float64(matched) * mult * (lot.EntryPrice*lot.CommissionRate + o.Price*o.CommissionRate),
		PnL:        (o.Price - lot.EntryPrice) * float64(matched) * mult * lot.Direction.Sign(),
	}
}
