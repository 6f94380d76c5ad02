// Package broker resolves trading intents into orders and routes them through simulated execution.
package broker

import (
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/quant/internal/core"
)

// Broker-specific errors.
var (
	// ErrInvalidInstrument indicates an empty instrument.
	ErrInvalidInstrument = errors.New("broker: invalid instrument")
	// ErrInvalidLots indicates a non-positive lot count.
	ErrInvalidLots = errors.New("broker: lots must be positive")
	// ErrInvalidDirection indicates a direction other than buy or sell.
	ErrInvalidDirection = errors.New("broker: invalid direction")
	// ErrOrderNotFound indicates the order was not found in the pending book.
	ErrOrderNotFound = errors.New("broker: order not found")
	// ErrOrderNotCancellable indicates the order is no longer pending.
	ErrOrderNotCancellable = errors.New("broker: order cannot be cancelled")
)

// OrderID is a sequential order number, unique within a run.
type OrderID int64

// ExecType classifies how an order executes.
type ExecType string

const (
	// ExecMarket fills immediately at its price.
	ExecMarket ExecType = "MARKET"
	// ExecLimit rests until the market trades at its price or better.
	ExecLimit ExecType = "LIMIT"
	// ExecStop rests until the market trades through its price.
	ExecStop ExecType = "STOP"
	// ExecCloseAll flattens the instrument at the reference price.
	ExecCloseAll ExecType = "CLOSE_ALL"
	// ExecStopLoss closes one lot at its stop-loss price.
	ExecStopLoss ExecType = "STOP_LOSS"
	// ExecTakeProfit closes one lot at its take-profit price.
	ExecTakeProfit ExecType = "TAKE_PROFIT"
	// ExecTrailingStop closes one lot at its trailing-stop price.
	ExecTrailingStop ExecType = "TRAILING_STOP"
)

// IsPending reports whether orders of this type rest in the pending book.
func (e ExecType) IsPending() bool {
	return e == ExecLimit || e == ExecStop
}

// IsTriggeredExit reports whether the order closes a specific parent lot.
func (e ExecType) IsTriggeredExit() bool {
	return e == ExecStopLoss || e == ExecTakeProfit || e == ExecTrailingStop
}

// ChangesPosition reports whether a fill of this type may move the position.
func (e ExecType) ChangesPosition() bool {
	return e == ExecMarket || e == ExecCloseAll || e.IsTriggeredExit()
}

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	// OrderStatusCreated indicates the order was resolved but not yet submitted.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusSubmitted indicates the order reached the execution stage.
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	// OrderStatusFilled indicates the order was executed.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusPending indicates a limit or stop order resting in the book.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusRejected indicates the order was refused.
	OrderStatusRejected OrderStatus = "REJECTED"
	// OrderStatusCancelled indicates a pending order withdrawn before it triggered.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsFinal reports whether the status can no longer change.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected || s == OrderStatusCancelled
}

// Order is the record carried by Order and Fill events.
type Order struct {
	// ID is the sequential order number.
	ID OrderID `json:"id"`
	// Instrument is the traded contract.
	Instrument string `json:"instrument"`
	// Direction is +1 for buys and -1 for sells.
	Direction core.Direction `json:"direction"`
	// Lots is the positive order size.
	Lots int64 `json:"lots"`
	// RequestedPrice is the price resolved from the intent.
	RequestedPrice float64 `json:"requested_price"`
	// Price is the execution price. It differs from RequestedPrice when a
	// pending order gaps through its level and fills at the open.
	Price float64 `json:"price"`
	// Type is the execution classification.
	Type ExecType `json:"type"`
	// TriggeredFrom records LIMIT or STOP for a pending order converted to MARKET.
	TriggeredFrom ExecType `json:"triggered_from,omitempty"`
	// TakeProfit is the take-profit trigger price, 0 when unset.
	TakeProfit float64 `json:"take_profit,omitempty"`
	// StopLoss is the stop-loss trigger price, 0 when unset.
	StopLoss float64 `json:"stop_loss,omitempty"`
	// TrailingStop is the initial trailing-stop price, 0 when unset.
	TrailingStop float64 `json:"trailing_stop,omitempty"`
	// TrailingOffset is the distance used to re-track the trailing stop.
	TrailingOffset Offset `json:"trailing_offset,omitempty"`
	// CommissionRate is the per-unit commission rate.
	CommissionRate float64 `json:"commission_rate"`
	// MarginRate is the per-unit margin rate.
	MarginRate float64 `json:"margin_rate"`
	// Multiplier is the contract multiplier.
	Multiplier float64 `json:"multiplier"`
	// Time is the bar the order was created on.
	Time time.Time `json:"time"`
	// FilledAt is the bar the order filled on.
	FilledAt time.Time `json:"filled_at,omitempty"`
	// Status is the lifecycle status.
	Status OrderStatus `json:"status"`
	// Parent is the resting lot a triggered exit closes, 0 otherwise.
	Parent core.LotID `json:"parent,omitempty"`
	// Reason explains a rejection or cancellation.
	Reason string `json:"reason,omitempty"`
}

// SignedLots returns lots signed by direction.
func (o *Order) SignedLots() int64 {
	return int64(o.Direction) * o.Lots
}

// Commission returns the commission charged for filling lots of this order.
func (o *Order) Commission(lots int64) float64 {
	return float64(lots) * o.Price * o.CommissionRate * o.Multiplier
}

// Validate checks the order has valid required fields.
func (o *Order) Validate() error {
	if o.Instrument == "" {
		return ErrInvalidInstrument
	}
	if !o.Direction.IsValid() {
		return ErrInvalidDirection
	}
	if o.Lots <= 0 {
		return ErrInvalidLots
	}
	if o.Price <= 0 {
		return core.WrapError(core.ErrInvalidPrice, fmt.Errorf("order %d price %.4f", o.ID, o.Price))
	}
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("#%d %s %s %d %s @ %.4f [%s]", o.ID, o.Type, o.Direction, o.Lots, o.Instrument, o.Price, o.Status)
}
