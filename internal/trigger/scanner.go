// Package trigger evaluates resting conditional orders against each new bar.
package trigger

import (
	"go.uber.org/zap"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
	"github.com/newthinker/quant/internal/fill"
)

// PendingBook is the store of resting limit and stop orders.
type PendingBook interface {
	Pending(instrument string) []*broker.Order
	Take(id broker.OrderID) (*broker.Order, error)
}

// Scanner emits orders for pending orders and lot exits that a bar triggers.
type Scanner struct {
	pending  PendingBook
	lots     *fill.Book
	resolver *broker.Resolver
	logger   *zap.Logger
}

// NewScanner creates a Scanner over the pending book and the lot book.
func NewScanner(pending PendingBook, lots *fill.Book, resolver *broker.Resolver, logger ...*zap.Logger) *Scanner {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &Scanner{
		pending:  pending,
		lots:     lots,
		resolver: resolver,
		logger:   log,
	}
}

// Scan checks one bar of an instrument. Pending orders come first, in book
// order, followed by lot exits, oldest lot first. Nothing created on this
// bar is evaluated.
func (s *Scanner) Scan(bar core.Bar, c core.Contract) []*broker.Order {
	var out []*broker.Order
	out = append(out, s.scanPending(bar)...)
	out = append(out, s.scanLots(bar, c)...)
	return out
}

func (s *Scanner) scanPending(bar core.Bar) []*broker.Order {
	var out []*broker.Order
	for _, o := range s.pending.Pending(bar.Instrument) {
		if !o.Time.Before(bar.Time) {
			continue
		}
		price, ok := PendingFill(o, bar)
		if !ok {
			continue
		}
		taken, err := s.pending.Take(o.ID)
		if err != nil {
			continue
		}
		broker.Convert(taken, price)
		s.logger.Debug("pending order triggered",
			zap.Int64("id", int64(taken.ID)),
			zap.String("instrument", taken.Instrument),
			zap.String("from", string(taken.TriggeredFrom)),
			zap.Float64("price", price),
		)
		out = append(out, taken)
	}
	return out
}

// PendingFill decides whether a limit or stop order trades on bar and at
// what price. A gap through the order price fills at the open, otherwise
// the order fills at its own price when the bar's range reaches it.
func PendingFill(o *broker.Order, bar core.Bar) (float64, bool) {
	price := o.RequestedPrice
	buy := o.Direction == core.Buy

	switch {
	case o.Type == broker.ExecStop && buy && bar.Open > price:
		return bar.Open, true
	case o.Type == broker.ExecLimit && buy && bar.Open < price:
		return bar.Open, true
	case o.Type == broker.ExecLimit && !buy && bar.Open > price:
		return bar.Open, true
	case o.Type == broker.ExecStop && !buy && bar.Open < price:
		return bar.Open, true
	}
	if bar.Low <= price && price <= bar.High {
		return price, true
	}
	return 0, false
}

func (s *Scanner) scanLots(bar core.Bar, c core.Contract) []*broker.Order {
	var out []*broker.Order
	ref := bar.Price(c.TrailingMode)
	for _, lot := range s.lots.Lots(bar.Instrument) {
		if !lot.OpenedAt.Before(bar.Time) || !lot.HasTriggers() {
			continue
		}
		s.lots.Trail(lot.ID, ref)

		typ, price, ok := Exit(lot, bar)
		if !ok {
			continue
		}
		o := s.resolver.Exit(typ, lot.ID, lot.Direction, lot.Remaining, price, c, bar.Time)
		s.logger.Debug("exit triggered",
			zap.Int64("lot", int64(lot.ID)),
			zap.String("instrument", lot.Instrument),
			zap.String("type", string(typ)),
			zap.Float64("price", price),
		)
		out = append(out, o)
	}
	return out
}

// Exit returns the exit a bar triggers on a lot. Stop-loss is checked
// before the trailing stop, and both before take-profit, so a bar whose
// range spans a stop and a target always takes the stop.
func Exit(lot *fill.Lot, bar core.Bar) (broker.ExecType, float64, bool) {
	if lot.StopLoss != 0 && stopHit(lot.Direction, lot.StopLoss, bar) {
		return broker.ExecStopLoss, lot.StopLoss, true
	}
	if lot.TrailingStop != 0 && stopHit(lot.Direction, lot.TrailingStop, bar) {
		return broker.ExecTrailingStop, lot.TrailingStop, true
	}
	if lot.TakeProfit != 0 && targetHit(lot.Direction, lot.TakeProfit, bar) {
		return broker.ExecTakeProfit, lot.TakeProfit, true
	}
	return "", 0, false
}

func stopHit(dir core.Direction, stop float64, bar core.Bar) bool {
	if dir == core.Buy {
		return bar.Low <= stop
	}
	return bar.High >= stop
}

func targetHit(dir core.Direction, target float64, bar core.Bar) bool {
	if dir == core.Buy {
		return bar.High >= target
	}
	return bar.Low <= target
}
