package main

import (
	"fmt"

	"github.com/newthinker/quant/internal/config"
	"github.com/newthinker/quant/internal/logger"
	"github.com/newthinker/quant/internal/strategy"
	"github.com/newthinker/quant/internal/strategy/breakout"
	"github.com/newthinker/quant/internal/strategy/ma_crossover"
	"go.uber.org/zap"
)

// loadConfig reads --config, or the defaults when it is unset. The returned
// config is not validated.
func loadConfig() (*config.Config, bool, error) {
	if cfgFile == "" {
		return config.Defaults(), false, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := cfg.Log.LoggerConfig()
	if debug {
		lc.Development = true
		lc.Level = "debug"
	}
	return logger.New(lc)
}

func newStrategyRegistry(log *zap.Logger) *strategy.Registry {
	reg := strategy.NewRegistry(log)
	reg.Register("ma_crossover", func() strategy.Strategy { return ma_crossover.New(5, 20) })
	reg.Register("breakout", func() strategy.Strategy { return breakout.New() })
	return reg
}
