package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/quant/internal/report"
	"github.com/newthinker/quant/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage archived backtest runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the summary of an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// withArchive opens the configured run archive.
func withArchive(fn func(a *report.Archive, log *zap.Logger) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	store, err := archive.New(cfg.Archive.StorageConfig())
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	return fn(report.NewArchive(store), log)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withArchive(func(a *report.Archive, log *zap.Logger) error {
		ctx := context.Background()
		ids, err := a.Runs(ctx)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		if len(ids) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tSTRATEGY\tPERIOD\tTRADES\tRETURN\tFINAL EQUITY\t")
		fmt.Fprintln(w, "------\t--------\t------\t------\t------\t------------\t")

		for _, id := range ids {
			s, err := a.Summary(ctx, id)
			if err != nil {
				log.Warn("reading run summary", zap.String("run_id", id), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s..%s\t%d\t%.2f%%\t%.2f\t\n",
				s.RunID, s.Strategy, s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"),
				s.Stats.TotalTrades, s.Stats.TotalReturn, s.FinalEquity)
		}
		w.Flush()

		log.Debug("runs listed", zap.Int("count", len(ids)))
		return nil
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	return withArchive(func(a *report.Archive, log *zap.Logger) error {
		s, err := a.Summary(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("reading run %s: %w", args[0], err)
		}
		return report.WriteSummary(os.Stdout, s)
	})
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	return withArchive(func(a *report.Archive, log *zap.Logger) error {
		if err := a.Remove(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting run %s: %w", args[0], err)
		}
		log.Info("run deleted", zap.String("run_id", args[0]))
		return nil
	})
}
