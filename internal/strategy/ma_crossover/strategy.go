package ma_crossover

import (
	"fmt"
	"strings"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/indicator"
	"github.com/newthinker/quant/internal/strategy"
)

// MACrossover implements a moving average crossover strategy.
// It goes long on a golden cross and short on a death cross, reversing any
// opposite position in a single order.
type MACrossover struct {
	fastPeriod  int
	slowPeriod  int
	kind        indicator.MAKind
	lots        int64
	stopLossPct float64
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		kind:       indicator.KindSMA,
	}
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%s %d/%d)", strings.ToUpper(string(m.kind)), m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		PriceHistory: m.slowPeriod + 1,
		Indicators:   []string{strings.ToUpper(string(m.kind))},
	}
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	m.fastPeriod = cfg.Int("fast_period", m.fastPeriod)
	m.slowPeriod = cfg.Int("slow_period", m.slowPeriod)
	m.lots = int64(cfg.Int("lots", int(m.lots)))
	m.stopLossPct = cfg.Float("stop_loss_pct", m.stopLossPct)

	kind, err := indicator.ParseMAKind(cfg.String("ma_type", string(m.kind)))
	if err != nil {
		return fmt.Errorf("ma_crossover: %w", err)
	}
	m.kind = kind

	if m.fastPeriod <= 0 || m.slowPeriod <= m.fastPeriod {
		return fmt.Errorf("ma_crossover: need 0 < fast_period < slow_period, got %d/%d", m.fastPeriod, m.slowPeriod)
	}
	if m.lots < 0 || m.stopLossPct < 0 {
		return fmt.Errorf("ma_crossover: lots and stop_loss_pct must not be negative")
	}
	return nil
}

func (m *MACrossover) OnBar(ctx *strategy.Context) error {
	prices := ctx.Closes()
	if len(prices) < m.slowPeriod+1 {
		return nil // Not enough data
	}

	fastMA := indicator.MA(m.kind, prices, m.fastPeriod)
	slowMA := indicator.MA(m.kind, prices, m.slowPeriod)
	if len(fastMA) < 2 || len(slowMA) < 2 {
		return nil
	}

	currFast := fastMA[len(fastMA)-1]
	prevFast := fastMA[len(fastMA)-2]
	currSlow := slowMA[len(slowMA)-1]
	prevSlow := slowMA[len(slowMA)-2]

	lots := m.lots
	if lots == 0 {
		lots = ctx.Contract.Lots
	}
	var opts []strategy.OrderOption
	if m.stopLossPct > 0 {
		opts = append(opts, strategy.WithStopLoss(broker.Percent(m.stopLossPct)))
	}
	pos := ctx.Position()

	// Golden Cross: fast crosses above slow
	if prevFast <= prevSlow && currFast > currSlow && pos <= 0 {
		ctx.Buy(lots-pos, opts...)
	}

	// Death Cross: fast crosses below slow
	if prevFast >= prevSlow && currFast < currSlow && pos >= 0 {
		ctx.Sell(lots+pos, opts...)
	}

	return nil
}
