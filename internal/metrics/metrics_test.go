package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordOrder(t *testing.T) {
	reg := NewRegistry()

	reg.RecordOrder("MARKET", "FILLED")
	reg.RecordOrder("MARKET", "FILLED")
	reg.RecordOrder("LIMIT", "PENDING")

	if got := testutil.ToFloat64(reg.ordersTotal.WithLabelValues("MARKET", "FILLED")); got != 2 {
		t.Errorf("expected 2 filled market orders, got %v", got)
	}
	if got := testutil.ToFloat64(reg.ordersTotal.WithLabelValues("LIMIT", "PENDING")); got != 1 {
		t.Errorf("expected 1 pending limit order, got %v", got)
	}
}

func TestRegistry_Counters(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBar("RB")
	reg.RecordFill("RB", "STOP_LOSS")
	reg.RecordTrigger("STOP_LOSS")
	reg.RecordRejection("insufficient cash")
	reg.RecordRuin()

	checks := []struct {
		name string
		got  float64
	}{
		{"bars", testutil.ToFloat64(reg.barsProcessed.WithLabelValues("RB"))},
		{"fills", testutil.ToFloat64(reg.fillsTotal.WithLabelValues("RB", "STOP_LOSS"))},
		{"triggers", testutil.ToFloat64(reg.triggersTotal.WithLabelValues("STOP_LOSS"))},
		{"rejections", testutil.ToFloat64(reg.rejectionsTotal.WithLabelValues("insufficient cash"))},
		{"ruin", testutil.ToFloat64(reg.ruinTotal)},
	}
	for _, c := range checks {
		if c.got != 1 {
			t.Errorf("%s: expected 1, got %v", c.name, c.got)
		}
	}
}

func TestRegistry_RecordBacktest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBacktest("success", 0.5)
	reg.SetFinalEquity("ma_crossover", 1050000)

	if got := testutil.ToFloat64(reg.backtestsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 backtest, got %v", got)
	}
	if got := testutil.ToFloat64(reg.finalEquity.WithLabelValues("ma_crossover")); got != 1050000 {
		t.Errorf("unexpected final equity %v", got)
	}
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var reg *Registry

	// Should not panic
	reg.RecordBar("RB")
	reg.RecordOrder("MARKET", "FILLED")
	reg.RecordRuin()
	reg.RecordBacktest("error", 1)
	if err := reg.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("success", 1.2)

	path := filepath.Join(t.TempDir(), "quant.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), "quant_backtests_total") {
		t.Error("expected quant_backtests_total in textfile")
	}
}
