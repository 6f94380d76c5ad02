package timeseries

import (
	"sort"
	"time"
)

// Field names a ledger series.
type Field string

// Per-instrument fields
const (
	Position   Field = "position"
	AvgPrice   Field = "avg_price"
	Margin     Field = "margin"
	Commission Field = "commission"
	Realized   Field = "realized_pnl"
	Unrealized Field = "unrealized_pnl"
)

// Account-wide fields
const (
	Equity Field = "equity"
	Cash   Field = "cash"
)

// InstrumentFields lists the per-instrument series in ledger order.
var InstrumentFields = []Field{Position, AvgPrice, Margin, Commission, Realized, Unrealized}

// GlobalFields lists the account-wide series.
var GlobalFields = []Field{Equity, Cash}

// Store owns every ledger series of a run.
type Store struct {
	instruments map[string]map[Field]*Series
	global      map[Field]*Series
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{
		instruments: make(map[string]map[Field]*Series),
		global:      make(map[Field]*Series),
	}
	for _, f := range GlobalFields {
		s.global[f] = NewSeries(string(f))
	}
	return s
}

// Series returns the series of an instrument field, creating it on first use.
func (s *Store) Series(instrument string, f Field) *Series {
	fields, ok := s.instruments[instrument]
	if !ok {
		fields = make(map[Field]*Series, len(InstrumentFields))
		for _, name := range InstrumentFields {
			fields[name] = NewSeries(instrument + "." + string(name))
		}
		s.instruments[instrument] = fields
	}
	ser, ok := fields[f]
	if !ok {
		ser = NewSeries(instrument + "." + string(f))
		fields[f] = ser
	}
	return ser
}

// Global returns an account-wide series.
func (s *Store) Global(f Field) *Series {
	ser, ok := s.global[f]
	if !ok {
		ser = NewSeries(string(f))
		s.global[f] = ser
	}
	return ser
}

// Set writes an instrument field with coalescing.
func (s *Store) Set(instrument string, f Field, t time.Time, v float64) error {
	return s.Series(instrument, f).Set(t, v)
}

// Accumulate adds into an instrument field with coalescing.
func (s *Store) Accumulate(instrument string, f Field, t time.Time, v float64) error {
	return s.Series(instrument, f).Accumulate(t, v)
}

// Last returns the latest value of an instrument field.
func (s *Store) Last(instrument string, f Field) float64 {
	return s.Series(instrument, f).Last()
}

// Instruments returns the instruments with series, sorted.
func (s *Store) Instruments() []string {
	out := make([]string, 0, len(s.instruments))
	for name := range s.instruments {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
