package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
	"github.com/newthinker/quant/internal/logger"
	"github.com/newthinker/quant/internal/storage/archive"
)

// DateLayout is the layout of backtest.from and backtest.to.
const DateLayout = "2006-01-02"

type Config struct {
	Backtest    BacktestConfig     `mapstructure:"backtest"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
	Strategy    StrategyConfig     `mapstructure:"strategy"`
	Risk        RiskConfig         `mapstructure:"risk"`
	Log         LogConfig          `mapstructure:"log"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
	Archive     ArchiveConfig      `mapstructure:"archive"`
	Journal     JournalConfig      `mapstructure:"journal"`
	Notifiers   []NotifierConfig   `mapstructure:"notifiers"`
}

type BacktestConfig struct {
	InitialCash float64 `mapstructure:"initial_cash"`
	From        string  `mapstructure:"from"` // inclusive, YYYY-MM-DD
	To          string  `mapstructure:"to"`   // inclusive, YYYY-MM-DD
	HistorySize int     `mapstructure:"history_size"`
	Timezone    string  `mapstructure:"timezone"`
}

// InstrumentConfig describes one feed: where its bars come from and the
// contract terms they trade under.
type InstrumentConfig struct {
	Symbol       string  `mapstructure:"symbol"`
	Data         string  `mapstructure:"data"` // CSV path
	Commission   float64 `mapstructure:"commission"`
	Margin       float64 `mapstructure:"margin"`
	Multiplier   float64 `mapstructure:"multiplier"`
	Lots         int64   `mapstructure:"lots"`
	ExecuteMode  string  `mapstructure:"execute_mode"`  // "open" or "close"
	TrailingMode string  `mapstructure:"trailing_mode"` // "open" or "close"
}

type StrategyConfig struct {
	Name   string         `mapstructure:"name"`
	Params map[string]any `mapstructure:"params"`
}

type RiskConfig struct {
	CheckMargin     bool  `mapstructure:"check_margin"`
	MaxPositionLots int64 `mapstructure:"max_position_lots"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// ArchiveConfig holds run artifact export settings.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifierConfig selects a run-completion notifier and its parameters.
type NotifierConfig struct {
	Type   string         `mapstructure:"type"` // "webhook" or "telegram"
	Params map[string]any `mapstructure:"params"`
}

// JournalConfig holds the SQLite trade journal settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("QUANT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	for i := range cfg.Instruments {
		cfg.Instruments[i].applyDefaults()
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCash: 1000000,
			HistorySize: 100,
			Timezone:    "UTC",
		},
		Strategy: StrategyConfig{
			Name: "ma_crossover",
		},
		Risk: RiskConfig{
			CheckMargin: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "./runs",
		},
		Journal: JournalConfig{
			Path: "./quant.db",
		},
	}
}

func (i *InstrumentConfig) applyDefaults() {
	if i.Lots == 0 {
		i.Lots = 1
	}
	if i.ExecuteMode == "" {
		i.ExecuteMode = string(core.PriceClose)
	}
	if i.TrailingMode == "" {
		i.TrailingMode = string(core.PriceClose)
	}
}

// Contract returns the trading terms of the instrument.
func (i InstrumentConfig) Contract() core.Contract {
	return core.Contract{
		Instrument:     i.Symbol,
		CommissionRate: i.Commission,
		MarginRate:     i.Margin,
		Multiplier:     i.Multiplier,
		Lots:           i.Lots,
		ExecMode:       core.PriceMode(i.ExecuteMode),
		TrailingMode:   core.PriceMode(i.TrailingMode),
	}
}

// Location returns the timezone bars are read in.
func (b BacktestConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Timezone)
}

// Period returns the backtest range as [from, to). Unset ends are zero.
func (b BacktestConfig) Period() (from, to time.Time, err error) {
	loc, err := b.Location()
	if err != nil {
		return from, to, err
	}
	if b.From != "" {
		if from, err = time.ParseInLocation(DateLayout, b.From, loc); err != nil {
			return from, to, fmt.Errorf("backtest.from: %w", err)
		}
	}
	if b.To != "" {
		if to, err = time.ParseInLocation(DateLayout, b.To, loc); err != nil {
			return from, to, fmt.Errorf("backtest.to: %w", err)
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// BrokerConfig converts the risk section for the execution stage.
func (r RiskConfig) BrokerConfig() broker.RiskConfig {
	return broker.RiskConfig{
		CheckMargin:     r.CheckMargin,
		MaxPositionLots: r.MaxPositionLots,
	}
}

// LoggerConfig converts the log section for the logger package.
func (l LogConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Development: l.Development,
		File:        l.File,
		MaxSizeMB:   l.MaxSizeMB,
		MaxBackups:  l.MaxBackups,
		MaxAgeDays:  l.MaxAgeDays,
		Compress:    l.Compress,
	}
}

// StorageConfig converts the archive section for the archive package.
func (a ArchiveConfig) StorageConfig() archive.Config {
	return archive.Config{
		Type: a.Type,
		Path: a.Path,
		S3: archive.S3Config{
			Bucket:    a.S3.Bucket,
			Endpoint:  a.S3.Endpoint,
			Region:    a.S3.Region,
			AccessKey: a.S3.AccessKey,
			SecretKey: a.S3.SecretKey,
			Prefix:    a.S3.Prefix,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Backtest validation
	if c.Backtest.InitialCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_cash must be positive, got %f", c.Backtest.InitialCash))
	}
	if c.Backtest.HistorySize < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("history_size cannot be negative, got %d", c.Backtest.HistorySize))
	}
	from, to, err := c.Backtest.Period()
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.from %s is after backtest.to %s", c.Backtest.From, c.Backtest.To))
	}

	// Instrument validation
	if len(c.Instruments) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one instrument required"))
	}
	seen := make(map[string]bool)
	for _, inst := range c.Instruments {
		if inst.Symbol == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("instrument symbol required"))
		}
		if seen[inst.Symbol] {
			return core.WrapError(core.ErrDuplicateFeed, fmt.Errorf("instrument %s listed twice", inst.Symbol))
		}
		seen[inst.Symbol] = true
		if inst.Data == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s: data path required", inst.Symbol))
		}
		if inst.Multiplier <= 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s: multiplier must be positive, got %f", inst.Symbol, inst.Multiplier))
		}
		if inst.Commission < 0 || inst.Margin < 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s: commission and margin cannot be negative", inst.Symbol))
		}
		if inst.Lots < 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s: lots cannot be negative, got %d", inst.Symbol, inst.Lots))
		}
		for _, mode := range []string{inst.ExecuteMode, inst.TrailingMode} {
			if mode != string(core.PriceOpen) && mode != string(core.PriceClose) {
				return core.WrapError(core.ErrConfigInvalid,
					fmt.Errorf("%s: price mode must be open or close, got %q", inst.Symbol, mode))
			}
		}
	}

	if c.Strategy.Name == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategy name required"))
	}
	if c.Risk.MaxPositionLots < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_position_lots cannot be negative, got %d", c.Risk.MaxPositionLots))
	}

	// Output validation - if enabled, check destination exists
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("metrics textfile required when metrics are enabled"))
	}
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required when type is localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive s3 bucket required when type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("archive type must be localfs or s3, got %q", c.Archive.Type))
		}
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("journal path required when journal is enabled"))
	}
	for _, n := range c.Notifiers {
		if n.Type != "webhook" && n.Type != "telegram" {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("notifier type must be webhook or telegram, got %q", n.Type))
		}
	}

	return nil
}
