package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/quant/internal/backtest"
	"github.com/newthinker/quant/internal/config"
	"github.com/newthinker/quant/internal/feed"
	"github.com/newthinker/quant/internal/journal"
	"github.com/newthinker/quant/internal/metrics"
	"github.com/newthinker/quant/internal/notifier"
	"github.com/newthinker/quant/internal/notifier/telegram"
	"github.com/newthinker/quant/internal/notifier/webhook"
	"github.com/newthinker/quant/internal/report"
	"github.com/newthinker/quant/internal/storage/archive"
	"github.com/newthinker/quant/internal/strategy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	btFrom     string
	btTo       string
	btCash     float64
	btStrategy string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over the configured instruments",
	Long: `Run a strategy over historical bars of every configured instrument.

Examples:
  quant backtest -c config.yaml
  quant backtest -c config.yaml --strategy breakout --from 2023-01-01 --to 2023-12-31`,
	RunE: runBacktest,
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List available strategies",
	Run: func(cmd *cobra.Command, args []string) {
		reg := newStrategyRegistry(zap.NewNop())
		for _, name := range reg.Names() {
			fmt.Println(name)
		}
	},
}

func init() {
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first bar date (YYYY-MM-DD), overrides backtest.from")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last bar date (YYYY-MM-DD), overrides backtest.to")
	backtestCmd.Flags().Float64Var(&btCash, "cash", 0, "initial cash, overrides backtest.initial_cash")
	backtestCmd.Flags().StringVar(&btStrategy, "strategy", "", "strategy name, overrides strategy.name")
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(strategiesCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, loaded, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	if !loaded {
		log.Warn("no config file specified, using defaults")
	}

	feeds, err := openFeeds(cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, f := range feeds {
			f.Close()
		}
	}()

	strat, err := newStrategyRegistry(log).Create(cfg.Strategy.Name, strategy.Config{Params: cfg.Strategy.Params})
	if err != nil {
		return fmt.Errorf("creating strategy: %w", err)
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bt := backtest.New(backtest.Config{
		InitialCash: cfg.Backtest.InitialCash,
		HistorySize: cfg.Backtest.HistorySize,
		Risk:        cfg.Risk.BrokerConfig(),
	}, backtest.WithLogger(log), backtest.WithMetrics(reg))

	ff := make([]feed.Feed, len(feeds))
	for i, f := range feeds {
		ff[i] = f
	}

	log.Info("starting backtest",
		zap.String("strategy", strat.Name()),
		zap.Int("instruments", len(feeds)),
		zap.Float64("initial_cash", cfg.Backtest.InitialCash),
	)
	res, err := bt.Run(ctx, strat, ff...)
	if err != nil {
		writeMetrics(log, cfg, reg)
		return fmt.Errorf("backtest failed: %w", err)
	}

	if err := report.PrintSummary(cmd.OutOrStdout(), res); err != nil {
		return err
	}

	if cfg.Archive.Enabled {
		if err := archiveRun(ctx, cfg, res); err != nil {
			log.Error("archiving run", zap.Error(err))
		} else {
			log.Info("run archived", zap.String("run_id", res.RunID))
		}
	}

	if cfg.Journal.Enabled {
		if err := journalRun(ctx, cfg, res); err != nil {
			log.Error("journaling run", zap.Error(err))
		}
	}

	if len(cfg.Notifiers) > 0 {
		notifyRun(ctx, log, cfg, res)
	}

	writeMetrics(log, cfg, reg)
	return nil
}

func applyBacktestFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("from") {
		cfg.Backtest.From = btFrom
	}
	if flags.Changed("to") {
		cfg.Backtest.To = btTo
	}
	if flags.Changed("cash") {
		cfg.Backtest.InitialCash = btCash
	}
	if flags.Changed("strategy") {
		cfg.Strategy.Name = btStrategy
	}
}

func openFeeds(cfg *config.Config) ([]*feed.CSV, error) {
	from, to, err := cfg.Backtest.Period()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Backtest.Location()
	if err != nil {
		return nil, err
	}
	opts := feed.Options{From: from, To: to, Location: loc}

	feeds := make([]*feed.CSV, 0, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		f, err := feed.OpenCSV(inst.Data, inst.Contract(), opts)
		if err != nil {
			for _, opened := range feeds {
				opened.Close()
			}
			return nil, fmt.Errorf("opening %s: %w", inst.Symbol, err)
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

func archiveRun(ctx context.Context, cfg *config.Config, res *backtest.Result) error {
	store, err := archive.New(cfg.Archive.StorageConfig())
	if err != nil {
		return err
	}
	_, err = report.NewArchive(store).Save(ctx, res)
	return err
}

func journalRun(ctx context.Context, cfg *config.Config, res *backtest.Result) error {
	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()
	return j.RecordRun(ctx, res)
}

func notifyRun(ctx context.Context, log *zap.Logger, cfg *config.Config, res *backtest.Result) {
	cfgs := make([]notifier.Config, len(cfg.Notifiers))
	for i, n := range cfg.Notifiers {
		cfgs[i] = notifier.Config{Type: n.Type, Params: n.Params}
	}
	reg, err := notifier.Build(cfgs, map[string]func() notifier.Notifier{
		"webhook":  func() notifier.Notifier { return webhook.New("", nil) },
		"telegram": func() notifier.Notifier { return telegram.New("", "") },
	})
	if err != nil {
		log.Error("creating notifiers", zap.Error(err))
		return
	}
	for name, err := range reg.NotifyAll(ctx, report.NewSummary(res)) {
		log.Error("notifying run", zap.String("notifier", name), zap.Error(err))
	}
}

func writeMetrics(log *zap.Logger, cfg *config.Config, reg *metrics.Registry) {
	if reg == nil || cfg.Metrics.Textfile == "" {
		return
	}
	if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Error("writing metrics", zap.Error(err))
	}
}
