// Package backtest replays bar feeds through a strategy, the order model,
// the execution stage and the matching engine on a single event queue.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
	"github.com/newthinker/quant/internal/feed"
	"github.com/newthinker/quant/internal/fill"
	"github.com/newthinker/quant/internal/metrics"
	"github.com/newthinker/quant/internal/strategy"
	"github.com/newthinker/quant/internal/trigger"
)

// Config holds run-wide settings.
type Config struct {
	InitialCash float64
	// HistorySize is the minimum number of bars kept for the strategy. The
	// strategy's own requirement is used when larger.
	HistorySize int
	Risk        broker.RiskConfig
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backtester) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Backtester) {
		b.metrics = m
	}
}

// Backtester runs strategy backtests against historical bar feeds
type Backtester struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Registry
}

// New creates a new Backtester
func New(cfg Config, opts ...Option) *Backtester {
	b := &Backtester{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// source is the loop's view of one feed.
type source struct {
	feed     feed.Feed
	contract core.Contract
	history  []core.Bar
	last     time.Time
	live     bool
}

// session is the state of one run. Nothing in it outlives Run.
type session struct {
	b        *Backtester
	strat    strategy.Strategy
	engine   *fill.Engine
	exec     *broker.ExecutionManager
	resolver *broker.Resolver
	scanner  *trigger.Scanner
	queue    *Queue
	sources  []*source
	bySymbol map[string]*source
	window   int
	start    time.Time
	end      time.Time
}

// Run executes a backtest of strat over feeds. Configuration and data errors
// abort the run; rejections and ruin do not.
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, feeds ...feed.Feed) (*Result, error) {
	began := time.Now()
	res, err := b.run(ctx, strat, feeds)
	status := "success"
	if err != nil {
		status = "error"
	}
	b.metrics.RecordBacktest(status, time.Since(began).Seconds())
	if res != nil {
		b.metrics.SetFinalEquity(res.Strategy, res.FinalEquity)
	}
	return res, err
}

func (b *Backtester) run(ctx context.Context, strat strategy.Strategy, feeds []feed.Feed) (*Result, error) {
	if strat == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("no strategy"))
	}
	if len(feeds) == 0 {
		return nil, core.WrapError(core.ErrNoData, errors.New("no feeds"))
	}
	if b.cfg.InitialCash <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("initial cash %v must be positive", b.cfg.InitialCash))
	}

	s, err := b.newSession(strat, feeds)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	b.logger.Info("backtest started",
		zap.String("run_id", runID),
		zap.String("strategy", strat.Name()),
		zap.Strings("instruments", s.engine.Instruments()),
		zap.Float64("initial_cash", b.cfg.InitialCash),
	)

	if err := s.loop(ctx); err != nil {
		return nil, err
	}

	res := s.result(runID)
	b.logger.Info("backtest finished",
		zap.String("run_id", runID),
		zap.Float64("final_equity", res.FinalEquity),
		zap.Int("trades", len(res.Trades)),
		zap.Bool("halted", res.Halted),
	)
	return res, nil
}

func (b *Backtester) newSession(strat strategy.Strategy, feeds []feed.Feed) (*session, error) {
	engine := fill.NewEngine(b.cfg.InitialCash, b.logger)
	exec := broker.NewExecutionManager(broker.NewRiskChecker(b.cfg.Risk), engine, b.logger)
	resolver := broker.NewResolver()

	s := &session{
		b:        b,
		strat:    strat,
		engine:   engine,
		exec:     exec,
		resolver: resolver,
		scanner:  trigger.NewScanner(exec, engine.Book(), resolver, b.logger),
		queue:    NewQueue(),
		bySymbol: make(map[string]*source),
		window:   max(strat.RequiredData().PriceHistory, b.cfg.HistorySize, 1),
	}

	for _, f := range feeds {
		c := f.Contract()
		if err := feed.Validate(c); err != nil {
			return nil, err
		}
		if _, ok := s.bySymbol[c.Instrument]; ok {
			return nil, core.WrapError(core.ErrDuplicateFeed, fmt.Errorf("instrument %s", c.Instrument))
		}
		if err := engine.Register(c); err != nil {
			return nil, err
		}
		src := &source{feed: f, contract: c, live: true}
		s.sources = append(s.sources, src)
		s.bySymbol[c.Instrument] = src
	}

	engine.OnRuin(func(at time.Time, equity, cash float64) {
		b.metrics.RecordRuin()
		s.halt()
	})
	return s, nil
}

// loop drains the queue, advancing to the next bar whenever it runs dry.
func (s *session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, ok := s.queue.Pop()
		if !ok {
			if s.finished() {
				return nil
			}
			if err := s.advance(); err != nil {
				return err
			}
		} else if err := s.dispatch(ev); err != nil {
			return err
		}

		if s.engine.Ruined() {
			s.queue.Clear()
			return nil
		}
	}
}

func (s *session) finished() bool {
	for _, src := range s.sources {
		if src.live {
			return false
		}
	}
	return true
}

func (s *session) halt() {
	for _, src := range s.sources {
		src.live = false
	}
}

// advance loads the next bar of every live feed, marks the ledger to market,
// fills the orders the bar triggers and then queues the bar's Market events.
func (s *session) advance() error {
	var bars []core.Bar
	for _, src := range s.sources {
		if !src.live {
			continue
		}
		bar, ok, err := src.feed.Next()
		if err != nil {
			return fmt.Errorf("feed %s: %w", src.contract.Instrument, err)
		}
		if !ok {
			src.live = false
			s.b.logger.Debug("feed exhausted", zap.String("instrument", src.contract.Instrument))
			continue
		}
		if bar.Instrument == "" {
			bar.Instrument = src.contract.Instrument
		}
		if bar.Instrument != src.contract.Instrument {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("feed %s yielded a bar of %s", src.contract.Instrument, bar.Instrument))
		}
		if !bar.IsValid() {
			return core.WrapError(core.ErrInvalidPrice, fmt.Errorf("%s bar at %s is malformed", bar.Instrument, bar.Time.Format(time.RFC3339)))
		}
		if !src.last.IsZero() && !bar.Time.After(src.last) {
			return core.WrapError(core.ErrDuplicateTimestamp, fmt.Errorf("%s bar at %s follows %s", bar.Instrument, bar.Time.Format(time.RFC3339), src.last.Format(time.RFC3339)))
		}
		src.last = bar.Time
		src.history = append(src.history, bar)
		if len(src.history) > s.window {
			src.history = src.history[len(src.history)-s.window:]
		}
		if s.start.IsZero() || bar.Time.Before(s.start) {
			s.start = bar.Time
		}
		if bar.Time.After(s.end) {
			s.end = bar.Time
		}
		bars = append(bars, bar)
		s.b.metrics.RecordBar(bar.Instrument)
	}

	for _, bar := range bars {
		if err := s.engine.MarkToMarket(bar); err != nil {
			return err
		}
		if s.engine.Ruined() {
			return nil
		}
	}
	for _, bar := range bars {
		for _, o := range s.scanner.Scan(bar, s.bySymbol[bar.Instrument].contract) {
			kind := o.Type
			if o.TriggeredFrom != "" {
				kind = o.TriggeredFrom
			}
			s.b.metrics.RecordTrigger(string(kind))
			s.queue.Push(OrderEvent{Order: o})
		}
	}
	// Triggered orders settle before the strategy sees the bar.
	if err := s.drain(); err != nil || s.engine.Ruined() {
		return err
	}
	for _, bar := range bars {
		s.queue.Push(MarketEvent{Bar: bar})
	}
	return nil
}

// drain dispatches queued events until the queue is empty or the account is
// ruined.
func (s *session) drain() error {
	for !s.engine.Ruined() {
		ev, ok := s.queue.Pop()
		if !ok {
			return nil
		}
		if err := s.dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) dispatch(ev Event) error {
	switch e := ev.(type) {
	case MarketEvent:
		return s.onMarket(e)
	case SignalEvent:
		return s.onSignal(e)
	case OrderEvent:
		s.onOrder(e)
		return nil
	case FillEvent:
		return s.onFill(e)
	default:
		return fmt.Errorf("backtest: unknown event kind %v", ev.Kind())
	}
}

// onMarket runs the strategy for one bar and queues its signals.
func (s *session) onMarket(e MarketEvent) error {
	src := s.bySymbol[e.Bar.Instrument]
	if s.engine.Halted(e.Bar.Instrument) {
		return nil
	}
	sctx := strategy.NewContext(e.Bar, src.history, src.contract, s.engine)
	if err := s.strat.OnBar(sctx); err != nil {
		return core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s at %s: %w", s.strat.Name(), e.Bar.Time.Format(time.RFC3339), err))
	}

	if sctx.CancelRequested() {
		for _, o := range s.exec.Cancel(e.Bar.Instrument) {
			s.b.metrics.RecordOrder(string(o.Type), string(o.Status))
		}
	}
	for _, in := range sctx.Intents() {
		s.queue.Push(SignalEvent{Bar: e.Bar, Intent: in})
	}
	return nil
}

// onSignal resolves an intent against the bar it was emitted on.
func (s *session) onSignal(e SignalEvent) error {
	src, ok := s.bySymbol[e.Intent.Instrument]
	if !ok {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("signal for unknown instrument %q", e.Intent.Instrument))
	}
	o, err := s.resolver.Resolve(e.Intent, src.contract, e.Bar, s.engine.Position(e.Intent.Instrument))
	if err != nil {
		return fmt.Errorf("resolve %s signal at %s: %w", e.Intent.Instrument, e.Bar.Time.Format(time.RFC3339), err)
	}
	if o == nil {
		return nil
	}
	s.queue.Push(OrderEvent{Order: o})
	return nil
}

// onOrder moves an order through the execution stage.
func (s *session) onOrder(e OrderEvent) {
	res := s.exec.Submit(e.Order)
	switch {
	case res.Filled:
		s.queue.Push(FillEvent{Order: res.Order})
	case res.Order.Status == broker.OrderStatusRejected:
		s.b.metrics.RecordOrder(string(res.Order.Type), string(res.Order.Status))
		s.b.metrics.RecordRejection(rejectionReason(res.Order.Reason))
	default:
		s.b.metrics.RecordOrder(string(res.Order.Type), string(res.Order.Status))
	}
}

// onFill applies an executed order to the ledger. Fills the ledger refuses
// are rejected and the run goes on.
func (s *session) onFill(e FillEvent) error {
	o := e.Order
	if _, err := s.engine.Apply(o); err != nil {
		if errors.Is(err, core.ErrOrderRejected) || errors.Is(err, core.ErrInstrumentHalted) {
			s.exec.Reject(o, err.Error())
			s.b.metrics.RecordOrder(string(o.Type), string(o.Status))
			s.b.metrics.RecordRejection(core.CodeOf(err))
			return nil
		}
		return err
	}
	s.b.metrics.RecordOrder(string(o.Type), string(o.Status))
	s.b.metrics.RecordFill(o.Instrument, string(o.Type))
	return nil
}

func (s *session) result(runID string) *Result {
	trades := s.engine.Trades()
	res := &Result{
		RunID:       runID,
		Strategy:    s.strat.Name(),
		Start:       s.start,
		End:         s.end,
		InitialCash: s.engine.InitialCash(),
		FinalEquity: s.engine.Equity(),
		Halted:      s.engine.Ruined(),
		Instruments: s.engine.Instruments(),
		Series:      s.engine.Store(),
		Trades:      trades,
		Orders:      s.exec.History(),
	}
	res.Stats = CalculateStats(res.InitialCash, res.EquityCurve(), trades)
	return res
}

// rejectionReason maps an execution-stage rejection message to a bounded
// metric label.
func rejectionReason(reason string) string {
	if strings.HasPrefix(reason, "[") {
		if code, _, ok := strings.Cut(reason[1:], "]"); ok {
			return code
		}
	}
	for _, label := range []string{"insufficient cash", "position limit exceeded", "instrument halted"} {
		if strings.HasPrefix(reason, label) {
			return label
		}
	}
	return "invalid order"
}
