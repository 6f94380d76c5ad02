package backtest

import (
	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
)

// EventKind identifies the handler an event is routed to.
type EventKind int

const (
	// EventMarket carries a new bar to the strategy.
	EventMarket EventKind = iota
	// EventSignal carries a strategy intent to the order model.
	EventSignal
	// EventOrder carries a resolved order to the execution stage.
	EventOrder
	// EventFill carries an executed order to the matching engine.
	EventFill
)

func (k EventKind) String() string {
	switch k {
	case EventMarket:
		return "MARKET"
	case EventSignal:
		return "SIGNAL"
	case EventOrder:
		return "ORDER"
	case EventFill:
		return "FILL"
	default:
		return "UNKNOWN"
	}
}

// Event is a unit of work in the simulation queue.
type Event interface {
	Kind() EventKind
}

// MarketEvent announces a bar to the strategy.
type MarketEvent struct {
	Bar core.Bar
}

// SignalEvent is an intent emitted by the strategy while handling Bar.
type SignalEvent struct {
	Bar    core.Bar
	Intent broker.Intent
}

// OrderEvent is an order awaiting execution.
type OrderEvent struct {
	Order *broker.Order
}

// FillEvent is an executed order awaiting the ledger.
type FillEvent struct {
	Order *broker.Order
}

func (MarketEvent) Kind() EventKind { return EventMarket }
func (SignalEvent) Kind() EventKind { return EventSignal }
func (OrderEvent) Kind() EventKind  { return EventOrder }
func (FillEvent) Kind() EventKind   { return EventFill }
