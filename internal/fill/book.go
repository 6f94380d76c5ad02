// Package fill applies fills to the ledger: FIFO netting over resting lots,
// ledger series updates, the completed-trade log and ruin detection.
package fill

import (
	"time"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
)

// Lot is an open position slice with its own entry price and exit triggers.
type Lot struct {
	ID             core.LotID     `json:"id"`
	Instrument     string         `json:"instrument"`
	Direction      core.Direction `json:"direction"`
	Remaining      int64          `json:"remaining"`
	EntryPrice     float64        `json:"entry_price"`
	CommissionRate float64        `json:"commission_rate"`
	Multiplier     float64        `json:"multiplier"`
	OpenedAt       time.Time      `json:"opened_at"`
	OrderID        broker.OrderID `json:"order_id"`
	TakeProfit     float64        `json:"take_profit,omitempty"`
	StopLoss       float64        `json:"stop_loss,omitempty"`
	TrailingStop   float64        `json:"trailing_stop,omitempty"`
	TrailingOffset broker.Offset  `json:"trailing_offset"`
}

// SignedLots returns remaining lots signed by direction.
func (l *Lot) SignedLots() int64 {
	return int64(l.Direction) * l.Remaining
}

// HasTriggers reports whether any exit trigger is set.
func (l *Lot) HasTriggers() bool {
	return l.TakeProfit != 0 || l.StopLoss != 0 || l.TrailingStop != 0
}

// Book is the arena of resting lots. Lots are addressed by a stable id and
// kept per instrument in opening order.
type Book struct {
	lots  map[core.LotID]*Lot
	order map[string][]core.LotID
	seq   core.LotID
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{
		lots:  make(map[core.LotID]*Lot),
		order: make(map[string][]core.LotID),
	}
}

// open adds a lot for lots of the fill o.
func (b *Book) open(o *broker.Order, lots int64, at time.Time) *Lot {
	b.seq++
	lot := &Lot{
		ID:             b.seq,
		Instrument:     o.Instrument,
		Direction:      o.Direction,
		Remaining:      lots,
		EntryPrice:     o.Price,
		CommissionRate: o.CommissionRate,
		Multiplier:     o.Multiplier,
		OpenedAt:       at,
		OrderID:        o.ID,
		TakeProfit:     o.TakeProfit,
		StopLoss:       o.StopLoss,
		TrailingStop:   o.TrailingStop,
		TrailingOffset: o.TrailingOffset,
	}
	b.lots[lot.ID] = lot
	b.order[lot.Instrument] = append(b.order[lot.Instrument], lot.ID)
	return lot
}

// remove drops a lot from the arena.
func (b *Book) remove(id core.LotID) {
	lot, ok := b.lots[id]
	if !ok {
		return
	}
	delete(b.lots, id)
	ids := b.order[lot.Instrument]
	for i, v := range ids {
		if v == id {
			b.order[lot.Instrument] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Get returns a lot by id.
func (b *Book) Get(id core.LotID) (*Lot, bool) {
	lot, ok := b.lots[id]
	return lot, ok
}

// Lots returns the instrument's lots, oldest first.
func (b *Book) Lots(instrument string) []*Lot {
	ids := b.order[instrument]
	out := make([]*Lot, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.lots[id])
	}
	return out
}

// Net returns the signed sum of the instrument's remaining lots.
func (b *Book) Net(instrument string) int64 {
	var net int64
	for _, id := range b.order[instrument] {
		net += b.lots[id].SignedLots()
	}
	return net
}

// AvgPrice returns the lots-weighted entry price of the instrument's lots,
// or 0 when there are none.
func (b *Book) AvgPrice(instrument string) float64 {
	var lots int64
	var cost float64
	for _, id := range b.order[instrument] {
		lot := b.lots[id]
		lots += lot.Remaining
		cost += float64(lot.Remaining) * lot.EntryPrice
	}
	if lots == 0 {
		return 0
	}
	return cost / float64(lots)
}

// Trail re-tracks a lot's trailing stop from ref. It never loosens.
func (b *Book) Trail(id core.LotID, ref float64) (float64, bool) {
	lot, ok := b.lots[id]
	if !ok || lot.TrailingStop == 0 || !lot.TrailingOffset.IsSet() {
		return 0, false
	}
	lot.TrailingStop = broker.Tighten(lot.TrailingStop, broker.TrailPrice(ref, lot.Direction, lot.TrailingOffset), lot.Direction)
	return lot.TrailingStop, true
}

// Len returns the number of resting lots across instruments.
func (b *Book) Len() int {
	return len(b.lots)
}
