package strategy

import (
	"fmt"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// Int returns an integer parameter, accepting any numeric encoding.
func (c Config) Int(key string, def int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns a float parameter, accepting any numeric encoding.
func (c Config) Float(key string, def float64) float64 {
	switch v := c.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// String returns a string parameter.
func (c Config) String(key, def string) string {
	if v, ok := c.Params[key].(string); ok {
		return v
	}
	return def
}

// DataRequirements specifies what data a strategy needs
type DataRequirements struct {
	PriceHistory int // Bars of history needed, including the current one
	Indicators   []string
}

// Strategy defines the interface for trading strategies
type Strategy interface {
	Name() string
	Description() string
	RequiredData() DataRequirements
	Init(cfg Config) error
	// OnBar is called once per bar of every instrument and may place orders
	// through the context.
	OnBar(ctx *Context) error
}

// ErrUnknownStrategy is returned for names with no registered factory.
type ErrUnknownStrategy struct {
	Name string
}

func (e ErrUnknownStrategy) Error() string {
	return fmt.Sprintf("strategy: unknown strategy %q", e.Name)
}
