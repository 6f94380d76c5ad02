package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/quant/internal/core"
)

// TimeLayouts are tried in order when parsing the time column.
var TimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
}

// CSV reads bars from rows of
//
//	time,open,high,low,close[,volume]
//
// A header row is optional; when present, columns are matched by name
// (time, date or datetime for the timestamp) and may appear in any order.
// Rows are filtered to [From, To) when those are set. Empty rows are skipped.
type CSV struct {
	contract core.Contract
	closer   io.Closer
	r        *csv.Reader
	from     time.Time
	to       time.Time
	loc      *time.Location

	sawFirst bool
	columns  map[string]int
	line     int
}

// Options configures a CSV feed.
type Options struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

// OpenCSV opens a CSV file as a feed.
func OpenCSV(path string, c core.Contract, opts Options) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, err)
	}
	feed := NewCSV(f, c, opts)
	feed.closer = f
	return feed, nil
}

// NewCSV creates a feed reading from r.
func NewCSV(r io.Reader, c core.Contract, opts Options) *CSV {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &CSV{
		contract: c,
		r:        cr,
		from:     opts.From,
		to:       opts.To,
		loc:      loc,
		columns:  map[string]int{"time": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5},
	}
}

// Contract returns the instrument terms.
func (f *CSV) Contract() core.Contract {
	return f.contract
}

// Close releases the underlying file.
func (f *CSV) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Next returns the next bar inside the date range.
func (f *CSV) Next() (core.Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return core.Bar{}, false, nil
		}
		f.line++
		if err != nil {
			return core.Bar{}, false, fmt.Errorf("feed %s line %d: %w", f.contract.Instrument, f.line, err)
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if f.parseHeader(row) {
				continue
			}
		}

		bar, err := f.parseRow(row)
		if err != nil {
			return core.Bar{}, false, fmt.Errorf("feed %s line %d: %w", f.contract.Instrument, f.line, err)
		}
		if !f.to.IsZero() && !bar.Time.Before(f.to) {
			return core.Bar{}, false, nil
		}
		if !inRange(bar.Time, f.from, f.to) {
			continue
		}
		return bar, true, nil
	}
}

func (f *CSV) parseHeader(row []string) bool {
	first := strings.ToLower(strings.TrimSpace(row[0]))
	if _, err := strconv.ParseFloat(first, 64); err == nil {
		return false
	}
	if _, err := f.parseTime(row[0]); err == nil {
		return false
	}

	cols := make(map[string]int, len(row))
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "date", "datetime", "timestamp":
			key = "time"
		case "vol":
			key = "volume"
		}
		cols[key] = i
	}
	f.columns = cols
	return true
}

func (f *CSV) parseRow(row []string) (core.Bar, error) {
	get := func(name string) (string, bool) {
		i, ok := f.columns[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}

	raw, ok := get("time")
	if !ok {
		return core.Bar{}, fmt.Errorf("missing time column")
	}
	t, err := f.parseTime(raw)
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{Instrument: f.contract.Instrument, Time: t}
	prices := []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
	}
	for _, p := range prices {
		s, ok := get(p.name)
		if !ok {
			return core.Bar{}, fmt.Errorf("missing %s column", p.name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("bad %s %q: %w", p.name, s, err)
		}
		*p.dst = v
	}
	if s, ok := get("volume"); ok && s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("bad volume %q: %w", s, err)
		}
		bar.Volume = int64(v)
	}
	if !bar.IsValid() {
		return core.Bar{}, fmt.Errorf("inconsistent bar at %s: o=%v h=%v l=%v c=%v",
			t.Format(time.RFC3339), bar.Open, bar.High, bar.Low, bar.Close)
	}
	return bar, nil
}

func (f *CSV) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.ParseInLocation(layout, s, f.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}
