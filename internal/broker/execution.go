package broker

import (
	"fmt"

	"go.uber.org/zap"
)

// Account is the ledger view the execution stage needs.
type Account interface {
	// Position returns the signed net position of an instrument.
	Position(instrument string) int64
	// Cash returns equity minus margin.
	Cash() float64
	// Halted reports whether the instrument stopped trading after ruin.
	Halted(instrument string) bool
}

// ExecuteResult represents the outcome of submitting an order.
type ExecuteResult struct {
	// Filled indicates the order should be applied to the ledger now.
	Filled bool
	// Order is the submitted order with its updated status.
	Order *Order
	// Message provides additional context about the result.
	Message string
}

// ExecutionManager moves orders through SUBMITTED to FILLED, PENDING or
// REJECTED and owns the book of resting limit and stop orders.
type ExecutionManager struct {
	risk    *RiskChecker
	account Account
	pending []*Order
	history []*Order
	logger  *zap.Logger
}

// NewExecutionManager creates a new ExecutionManager with the given dependencies.
func NewExecutionManager(risk *RiskChecker, account Account, logger ...*zap.Logger) *ExecutionManager {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &ExecutionManager{
		risk:    risk,
		account: account,
		logger:  log,
	}
}

// Submit processes an order event.
func (em *ExecutionManager) Submit(o *Order) *ExecuteResult {
	if o.Status == OrderStatusCreated {
		em.history = append(em.history, o)
	}
	o.Status = OrderStatusSubmitted

	if err := o.Validate(); err != nil {
		return em.reject(o, err.Error())
	}
	if em.account.Halted(o.Instrument) {
		return em.reject(o, "instrument halted")
	}

	if o.Type.IsPending() {
		o.Status = OrderStatusPending
		em.pending = append(em.pending, o)
		em.notify(o)
		return &ExecuteResult{
			Order:   o,
			Message: fmt.Sprintf("order pending: %s", o),
		}
	}

	if o.Type == ExecMarket && o.Parent == 0 {
		check := em.risk.Check(o, em.account.Position(o.Instrument), em.account.Cash())
		if !check.Allowed {
			return em.reject(o, check.Reason)
		}
	}

	o.Status = OrderStatusFilled
	em.notify(o)
	return &ExecuteResult{
		Filled:  true,
		Order:   o,
		Message: fmt.Sprintf("order filled: %s", o),
	}
}

// Reject marks an order rejected after submission, for fills the ledger refused.
func (em *ExecutionManager) Reject(o *Order, reason string) {
	em.reject(o, reason)
}

func (em *ExecutionManager) reject(o *Order, reason string) *ExecuteResult {
	o.Status = OrderStatusRejected
	o.Reason = reason
	em.logger.Warn("order rejected",
		zap.Int64("id", int64(o.ID)),
		zap.String("instrument", o.Instrument),
		zap.String("type", string(o.Type)),
		zap.String("reason", reason),
	)
	return &ExecuteResult{
		Order:   o,
		Message: fmt.Sprintf("order rejected: %s", reason),
	}
}

func (em *ExecutionManager) notify(o *Order) {
	em.logger.Debug("order status",
		zap.Int64("id", int64(o.ID)),
		zap.String("instrument", o.Instrument),
		zap.String("type", string(o.Type)),
		zap.String("status", string(o.Status)),
		zap.Float64("price", o.Price),
		zap.Int64("lots", o.SignedLots()),
	)
}

// Pending returns the resting orders of an instrument in insertion order.
func (em *ExecutionManager) Pending(instrument string) []*Order {
	var out []*Order
	for _, o := range em.pending {
		if o.Instrument == instrument {
			out = append(out, o)
		}
	}
	return out
}

// Take removes a pending order from the book so it can be executed.
func (em *ExecutionManager) Take(id OrderID) (*Order, error) {
	for i, o := range em.pending {
		if o.ID == id {
			em.pending = append(em.pending[:i], em.pending[i+1:]...)
			return o, nil
		}
	}
	return nil, ErrOrderNotFound
}

// Cancel withdraws pending orders of an instrument, or of every instrument
// when instrument is empty. It returns the cancelled orders.
func (em *ExecutionManager) Cancel(instrument string) []*Order {
	var cancelled []*Order
	kept := em.pending[:0]
	for _, o := range em.pending {
		if instrument == "" || o.Instrument == instrument {
			o.Status = OrderStatusCancelled
			o.Reason = "cancelled by strategy"
			cancelled = append(cancelled, o)
			em.notify(o)
			continue
		}
		kept = append(kept, o)
	}
	for i := len(kept); i < len(em.pending); i++ {
		em.pending[i] = nil
	}
	em.pending = kept
	return cancelled
}

// CancelOrder withdraws one pending order.
func (em *ExecutionManager) CancelOrder(id OrderID) error {
	o, err := em.Take(id)
	if err != nil {
		return ErrOrderNotCancellable
	}
	o.Status = OrderStatusCancelled
	o.Reason = "cancelled by strategy"
	em.notify(o)
	return nil
}

// History returns every submitted order in submission order.
func (em *ExecutionManager) History() []*Order {
	out := make([]*Order, len(em.history))
	copy(out, em.history)
	return out
}
