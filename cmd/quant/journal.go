package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/quant/internal/journal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite run journal",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled runs",
	RunE:  runJournalList,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "Show the trade log of a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDelete,
}

func init() {
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalDeleteCmd)
	rootCmd.AddCommand(journalCmd)
}

// withJournal opens the configured journal file.
func withJournal(fn func(j *journal.SQLite, log *zap.Logger) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	j, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("opening journal %s: %w", cfg.Journal.Path, err)
	}
	defer j.Close()

	return fn(j, log)
}

func runJournalList(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite, log *zap.Logger) error {
		runs, err := j.ListRuns(context.Background())
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTRATEGY\tINSTRUMENTS\tTRADES\tWIN RATE\tRETURN\tMAX DD\tHALTED\tRECORDED\t")
		fmt.Fprintln(w, "------\t--------\t-----------\t------\t--------\t------\t------\t------\t--------\t")

		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%.1f%%\t%.2f%%\t%.2f%%\t%t\t%s\t\n",
				r.RunID, r.Strategy, r.Instruments, r.TotalTrades, r.WinRate,
				r.TotalReturn, r.MaxDrawdown, r.Halted, r.RecordedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
		return nil
	})
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite, log *zap.Logger) error {
		ctx := context.Background()
		if _, err := j.GetRun(ctx, args[0]); err != nil {
			return err
		}
		trades, err := j.Trades(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting trades: %w", err)
		}

		if len(trades) == 0 {
			fmt.Println("No trades found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tINSTRUMENT\tSIDE\tLOTS\tENTRY\tEXIT\tOPENED\tCLOSED\tEXIT TYPE\tP&L\t")
		fmt.Fprintln(w, "-\t----------\t----\t----\t-----\t----\t------\t------\t---------\t---\t")

		for _, t := range trades {
			plSign := ""
			if t.PnL >= 0 {
				plSign = "+"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\t%.2f\t%s\t%s\t%s\t%s%.2f\t\n",
				t.Seq, t.Instrument, t.Direction, t.Lots, t.EntryPrice, t.ExitPrice,
				t.OpenTime.Format("2006-01-02"), t.CloseTime.Format("2006-01-02"), t.ExitType, plSign, t.PnL)
		}
		w.Flush()

		log.Debug("trades listed", zap.Int("count", len(trades)))
		return nil
	})
}

func runJournalDelete(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite, log *zap.Logger) error {
		if err := j.DeleteRun(context.Background(), args[0]); err != nil {
			return err
		}
		log.Info("journal run deleted", zap.String("run_id", args[0]))
		return nil
	})
}
