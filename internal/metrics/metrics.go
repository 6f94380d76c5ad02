package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics of a backtest process.
// A nil *Registry is valid and records nothing.
type Registry struct {
	*prometheus.Registry

	barsProcessed    *prometheus.CounterVec
	ordersTotal      *prometheus.CounterVec
	fillsTotal       *prometheus.CounterVec
	triggersTotal    *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	ruinTotal        prometheus.Counter
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	finalEquity      *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		barsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_bars_processed_total",
				Help: "Total number of bars replayed",
			},
			[]string{"instrument"},
		),

		ordersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_orders_total",
				Help: "Total number of orders by execution type and final status",
			},
			[]string{"type", "status"},
		),

		fillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_fills_total",
				Help: "Total number of fills applied to the ledger",
			},
			[]string{"instrument", "type"},
		),
	}

	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.ordersTotal)
	reg.MustRegister(r.fillsTotal)

	r.triggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_triggers_total",
			Help: "Total number of conditional orders triggered by price",
		},
		[]string{"type"},
	)
	r.rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_rejections_total",
			Help: "Total number of rejected orders",
		},
		[]string{"reason"},
	)
	r.ruinTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quant_ruin_total",
			Help: "Total number of runs halted by ruin",
		},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quant_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quant_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
	r.finalEquity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quant_final_equity",
			Help: "Account equity at the end of the last run",
		},
		[]string{"strategy"},
	)

	reg.MustRegister(r.triggersTotal)
	reg.MustRegister(r.rejectionsTotal)
	reg.MustRegister(r.ruinTotal)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.finalEquity)

	return r
}

// RecordBar records a replayed bar.
func (r *Registry) RecordBar(instrument string) {
	if r == nil {
		return
	}
	r.barsProcessed.WithLabelValues(instrument).Inc()
}

// RecordOrder records an order reaching a status.
func (r *Registry) RecordOrder(execType, status string) {
	if r == nil {
		return
	}
	r.ordersTotal.WithLabelValues(execType, status).Inc()
}

// RecordFill records a fill applied to the ledger.
func (r *Registry) RecordFill(instrument, execType string) {
	if r == nil {
		return
	}
	r.fillsTotal.WithLabelValues(instrument, execType).Inc()
}

// RecordTrigger records a pending order or lot exit triggered by a bar.
func (r *Registry) RecordTrigger(execType string) {
	if r == nil {
		return
	}
	r.triggersTotal.WithLabelValues(execType).Inc()
}

// RecordRejection records a rejected order.
func (r *Registry) RecordRejection(reason string) {
	if r == nil {
		return
	}
	r.rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordRuin records a run halted by ruin.
func (r *Registry) RecordRuin() {
	if r == nil {
		return
	}
	r.ruinTotal.Inc()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// SetFinalEquity sets the closing equity of a strategy's run.
func (r *Registry) SetFinalEquity(strategy string, equity float64) {
	if r == nil {
		return
	}
	r.finalEquity.WithLabelValues(strategy).Set(equity)
}

// WriteTextfile writes the registry in the text exposition format, for
// node_exporter's textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.Registry)
}
