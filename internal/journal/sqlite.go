// Package journal records finished backtest runs in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/newthinker/quant/internal/backtest"
	"github.com/newthinker/quant/internal/core"
	ts "github.com/newthinker/quant/internal/timeseries"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	RunID       string
	Strategy    string
	Start       time.Time
	End         time.Time
	Instruments []string
	InitialCash float64
	FinalEquity float64
	Halted      bool
	TotalTrades int
	WinRate     float64
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
	RecordedAt  time.Time
}

// TradeRecord is one row of the trades table.
type TradeRecord struct {
	Seq        int
	Instrument string
	Direction  core.Direction
	Lots       int64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	ExitType   string
	Commission float64
	PnL        float64
}

// SQLite is a run journal backed by a SQLite file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the journal at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordRun stores the summary, trade log and equity curve of res in one
// transaction. Recording the same run twice fails.
func (j *SQLite) RecordRun(ctx context.Context, res *backtest.Result) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	s := res.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, strategy, start_time, end_time, instruments, initial_cash, final_equity, halted,
		 total_trades, win_rate, total_return, max_drawdown, sharpe_ratio, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Strategy, res.Start, res.End, strings.Join(res.Instruments, ","),
		res.InitialCash, res.FinalEquity, res.Halted,
		s.TotalTrades, s.WinRate, s.TotalReturn, s.MaxDrawdown, s.SharpeRatio, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", res.RunID, err)
	}

	for i, t := range res.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades
			(run_id, seq, instrument, direction, lots, entry_price, exit_price, open_time, close_time, exit_type, commission, pnl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, i+1, t.Instrument, int(t.Entry.Direction), t.Lots, t.EntryPrice, t.ExitPrice,
			t.Entry.OpenedAt, t.Time, string(t.Exit.Type), t.Commission, t.PnL,
		)
		if err != nil {
			return fmt.Errorf("inserting trade %d: %w", i+1, err)
		}
	}

	if res.Series != nil {
		cash := res.Series.Global(ts.Cash)
		for i, p := range res.Series.Global(ts.Equity).Points() {
			var c float64
			if i < cash.Len() {
				c = cash.At(i).Value
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO equity (run_id, time, equity, cash) VALUES (?, ?, ?, ?)`,
				res.RunID, p.Time, p.Value, c)
			if err != nil {
				return fmt.Errorf("inserting equity at %s: %w", p.Time, err)
			}
		}
	}

	return tx.Commit()
}

// ListRuns returns the recorded runs, newest first.
func (j *SQLite) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, strategy, start_time, end_time, instruments, initial_cash, final_equity, halted,
		       total_trades, win_rate, total_return, max_drawdown, sharpe_ratio, recorded_at
		FROM runs ORDER BY recorded_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one recorded run.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT run_id, strategy, start_time, end_time, instruments, initial_cash, final_equity, halted,
		       total_trades, win_rate, total_return, max_drawdown, sharpe_ratio, recorded_at
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// Trades returns the trade log of a run in fill order.
func (j *SQLite) Trades(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, instrument, direction, lots, entry_price, exit_price, open_time, close_time, exit_type, commission, pnl
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var (
			t   TradeRecord
			dir int
		)
		err := rows.Scan(&t.Seq, &t.Instrument, &dir, &t.Lots, &t.EntryPrice, &t.ExitPrice,
			&t.OpenTime, &t.CloseTime, &t.ExitType, &t.Commission, &t.PnL)
		if err != nil {
			return nil, err
		}
		t.Direction = core.Direction(dir)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Equity returns the equity curve of a run.
func (j *SQLite) Equity(ctx context.Context, runID string) ([]ts.Point, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT time, equity FROM equity WHERE run_id = ? ORDER BY time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []ts.Point
	for rows.Next() {
		var p ts.Point
		if err := rows.Scan(&p.Time, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteRun removes a run and everything recorded with it.
func (j *SQLite) DeleteRun(ctx context.Context, runID string) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r           Run
		instruments string
	)
	err := row.Scan(&r.RunID, &r.Strategy, &r.Start, &r.End, &instruments, &r.InitialCash, &r.FinalEquity,
		&r.Halted, &r.TotalTrades, &r.WinRate, &r.TotalReturn, &r.MaxDrawdown, &r.SharpeRatio, &r.RecordedAt)
	if err != nil {
		return Run{}, err
	}
	if instruments != "" {
		r.Instruments = strings.Split(instruments, ",")
	}
	return r, nil
}
