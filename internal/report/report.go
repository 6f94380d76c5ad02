// Package report encodes backtest results as CSV, JSON and text tables.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/newthinker/quant/internal/backtest"
	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/fill"
	ts "github.com/newthinker/quant/internal/timeseries"
)

// TimeLayout is the timestamp layout of every exported file.
const TimeLayout = time.RFC3339

// Summary is the digest of one run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Strategy    string         `json:"strategy"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Instruments []string       `json:"instruments"`
	InitialCash float64        `json:"initial_cash"`
	FinalEquity float64        `json:"final_equity"`
	Halted      bool           `json:"halted"`
	Orders      int            `json:"orders"`
	Stats       backtest.Stats `json:"stats"`
}

// NewSummary builds the digest of res.
func NewSummary(res *backtest.Result) Summary {
	return Summary{
		RunID:       res.RunID,
		Strategy:    res.Strategy,
		Start:       res.Start,
		End:         res.End,
		Instruments: res.Instruments,
		InitialCash: res.InitialCash,
		FinalEquity: res.FinalEquity,
		Halted:      res.Halted,
		Orders:      len(res.Orders),
		Stats:       res.Stats,
	}
}

// WriteSummary writes s as indented JSON.
func WriteSummary(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadSummary decodes a summary written by WriteSummary.
func ReadSummary(r io.Reader) (Summary, error) {
	var s Summary
	err := json.NewDecoder(r).Decode(&s)
	return s, err
}

var tradeHeader = []string{
	"instrument", "direction", "lots", "entry_time", "entry_price",
	"exit_time", "exit_price", "exit_type", "commission", "pnl",
	"position_after", "equity",
}

// WriteTrades writes the completed-trade log, one pair per row.
func WriteTrades(w io.Writer, trades []fill.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.Instrument,
			t.Entry.Direction.String(),
			strconv.FormatInt(t.Lots, 10),
			t.Entry.OpenedAt.Format(TimeLayout),
			f(t.EntryPrice),
			t.Time.Format(TimeLayout),
			f(t.ExitPrice),
			string(t.Exit.Type),
			f(t.Commission),
			f(t.PnL),
			strconv.FormatInt(t.PositionAfter, 10),
			f(t.Equity),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var orderHeader = []string{
	"id", "time", "instrument", "type", "triggered_from", "direction", "lots",
	"requested_price", "price", "status", "filled_at", "parent", "reason",
}

// WriteOrders writes the order history.
func WriteOrders(w io.Writer, orders []*broker.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeader); err != nil {
		return err
	}
	for _, o := range orders {
		filled := ""
		if !o.FilledAt.IsZero() {
			filled = o.FilledAt.Format(TimeLayout)
		}
		err := cw.Write([]string{
			strconv.FormatInt(int64(o.ID), 10),
			o.Time.Format(TimeLayout),
			o.Instrument,
			string(o.Type),
			string(o.TriggeredFrom),
			o.Direction.String(),
			strconv.FormatInt(o.Lots, 10),
			f(o.RequestedPrice),
			f(o.Price),
			string(o.Status),
			filled,
			strconv.FormatInt(int64(o.Parent), 10),
			o.Reason,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquity writes the account equity and cash series.
func WriteEquity(w io.Writer, store *ts.Store) error {
	series := make([]*ts.Series, len(ts.GlobalFields))
	for i, field := range ts.GlobalFields {
		series[i] = store.Global(field)
	}
	return writeSeries(w, ts.GlobalFields, series)
}

// WriteLedger writes the ledger series of one instrument.
func WriteLedger(w io.Writer, store *ts.Store, instrument string) error {
	series := make([]*ts.Series, len(ts.InstrumentFields))
	for i, field := range ts.InstrumentFields {
		series[i] = store.Series(instrument, field)
	}
	return writeSeries(w, ts.InstrumentFields, series)
}

// writeSeries joins series on their timestamps. A series without a point at
// a timestamp leaves its cell empty.
func writeSeries(w io.Writer, fields []ts.Field, series []*ts.Series) error {
	rows := make(map[time.Time][]string)
	for i, s := range series {
		for _, p := range s.Points() {
			row, ok := rows[p.Time]
			if !ok {
				row = make([]string, len(series))
				rows[p.Time] = row
			}
			row[i] = f(p.Value)
		}
	}
	times := make([]time.Time, 0, len(rows))
	for t := range rows {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	cw := csv.NewWriter(w)
	header := []string{"time"}
	for _, field := range fields {
		header = append(header, string(field))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range times {
		if err := cw.Write(append([]string{t.Format(TimeLayout)}, rows[t]...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PrintSummary writes a human-readable result table.
func PrintSummary(w io.Writer, res *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	s := res.Stats
	fmt.Fprintf(tw, "Run:\t%s\n", res.RunID)
	fmt.Fprintf(tw, "Strategy:\t%s\n", res.Strategy)
	fmt.Fprintf(tw, "Period:\t%s to %s\n", res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))
	fmt.Fprintf(tw, "Instruments:\t%v\n", res.Instruments)
	fmt.Fprintf(tw, "Initial cash:\t%.2f\n", res.InitialCash)
	fmt.Fprintf(tw, "Final equity:\t%.2f\n", res.FinalEquity)
	fmt.Fprintf(tw, "Total return:\t%.2f%%\n", s.TotalReturn)
	fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\n", s.MaxDrawdown)
	fmt.Fprintf(tw, "Sharpe ratio:\t%.2f\n", s.SharpeRatio)
	fmt.Fprintf(tw, "Trades:\t%d (%d won, %d lost, %.1f%%)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate)
	fmt.Fprintf(tw, "Net profit:\t%.2f\n", s.NetProfit)
	fmt.Fprintf(tw, "Commission:\t%.2f\n", s.TotalCommission)
	if res.Halted {
		fmt.Fprintf(tw, "Halted:\tequity or cash exhausted\n")
	}
	return tw.Flush()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
