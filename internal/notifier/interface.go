// Package notifier announces finished backtest runs.
package notifier

import (
	"context"

	"github.com/newthinker/quant/internal/report"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier delivers the summary of a finished run.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers one run summary
	Send(ctx context.Context, s report.Summary) error
}
