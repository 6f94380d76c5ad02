package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/newthinker/quant/internal/backtest"
	"github.com/newthinker/quant/internal/storage/archive"
)

const runsPrefix = "runs"

type artifact struct {
	name  string
	write func(io.Writer) error
}

// Archive saves run artifacts under runs/<run id>/ in a storage backend.
type Archive struct {
	storage archive.Storage
}

// NewArchive creates an Archive over storage.
func NewArchive(storage archive.Storage) *Archive {
	return &Archive{storage: storage}
}

// Save writes the summary, trade log, order history, equity curve and every
// instrument's ledger of res. It returns the written paths.
func (a *Archive) Save(ctx context.Context, res *backtest.Result) ([]string, error) {
	if res.RunID == "" {
		return nil, fmt.Errorf("report: result has no run id")
	}
	files := []artifact{
		{"summary.json", func(w io.Writer) error { return WriteSummary(w, NewSummary(res)) }},
		{"trades.csv", func(w io.Writer) error { return WriteTrades(w, res.Trades) }},
		{"orders.csv", func(w io.Writer) error { return WriteOrders(w, res.Orders) }},
		{"equity.csv", func(w io.Writer) error { return WriteEquity(w, res.Series) }},
	}
	for _, sym := range res.Instruments {
		files = append(files, artifact{"ledger_" + sym + ".csv", func(w io.Writer) error {
			return WriteLedger(w, res.Series, sym)
		}})
	}

	var written []string
	for _, file := range files {
		var buf bytes.Buffer
		if err := file.write(&buf); err != nil {
			return written, fmt.Errorf("encoding %s: %w", file.name, err)
		}
		p := runPath(res.RunID, file.name)
		if err := a.storage.Write(ctx, p, buf.Bytes()); err != nil {
			return written, fmt.Errorf("writing %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

// Runs returns the ids of archived runs, sorted.
func (a *Archive) Runs(ctx context.Context) ([]string, error) {
	paths, err := a.storage.List(ctx, runsPrefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	seen := make(map[string]bool)
	for _, p := range paths {
		rest, ok := strings.CutPrefix(p, runsPrefix+"/")
		if !ok {
			continue
		}
		id, _, ok := strings.Cut(rest, "/")
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Summary loads the summary of an archived run.
func (a *Archive) Summary(ctx context.Context, runID string) (Summary, error) {
	data, err := a.storage.Read(ctx, runPath(runID, "summary.json"))
	if err != nil {
		return Summary{}, err
	}
	return ReadSummary(bytes.NewReader(data))
}

// Remove deletes every artifact of a run.
func (a *Archive) Remove(ctx context.Context, runID string) error {
	paths, err := a.storage.List(ctx, path.Join(runsPrefix, runID)+"/")
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: run %s", archive.ErrNotFound, runID)
	}
	for _, p := range paths {
		if err := a.storage.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func runPath(runID, name string) string {
	return path.Join(runsPrefix, runID, name)
}
