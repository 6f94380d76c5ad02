package broker

import (
	"fmt"
	"math"
)

// RiskConfig defines risk management parameters.
type RiskConfig struct {
	// CheckMargin rejects market orders whose extra margin exceeds available cash.
	CheckMargin bool
	// MaxPositionLots caps the absolute net position per instrument, 0 disables the cap.
	MaxPositionLots int64
}

// DefaultRiskConfig returns a RiskConfig with sensible default values.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		CheckMargin:     true,
		MaxPositionLots: 0,
	}
}

// RiskCheckResult represents the outcome of a risk check.
type RiskCheckResult struct {
	// Allowed indicates whether the order is permitted.
	Allowed bool
	// Reason provides explanation when order is rejected.
	Reason string
}

// RiskChecker validates orders against the account before they fill.
type RiskChecker struct {
	config RiskConfig
}

// NewRiskChecker creates a new RiskChecker with the given configuration.
func NewRiskChecker(config RiskConfig) *RiskChecker {
	return &RiskChecker{config: config}
}

// Check validates an order given the instrument's signed position and the
// account's free cash. Only orders that grow the absolute position are
// checked; closing and reducing orders are always allowed.
func (r *RiskChecker) Check(o *Order, position int64, cash float64) RiskCheckResult {
	after := position + o.SignedLots()
	grow := abs(after) - abs(position)
	if grow <= 0 {
		return RiskCheckResult{Allowed: true}
	}

	if r.config.MaxPositionLots > 0 && abs(after) > r.config.MaxPositionLots {
		return RiskCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("position limit exceeded: %d > %d lots", abs(after), r.config.MaxPositionLots),
		}
	}

	if r.config.CheckMargin {
		required := o.MarginRate * o.Multiplier * o.Price * float64(grow)
		if required > cash || math.IsNaN(required) {
			return RiskCheckResult{
				Allowed: false,
				Reason:  fmt.Sprintf("insufficient cash: margin %.2f > cash %.2f", required, cash),
			}
		}
	}

	return RiskCheckResult{Allowed: true}
}
