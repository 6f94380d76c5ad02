// Package timeseries holds the append-only ledger series written during a run.
package timeseries

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfOrder is returned when a write is dated before the last entry.
var ErrOutOfOrder = errors.New("timeseries: write before last timestamp")

// Point is one timestamped value.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an append-only sequence of points ordered by time.
// A write dated at the last entry's timestamp coalesces into that entry
// instead of appending a duplicate.
type Series struct {
	name   string
	points []Point
}

// NewSeries creates an empty named series.
func NewSeries(name string) *Series {
	return &Series{name: name}
}

// Name returns the series name.
func (s *Series) Name() string {
	return s.name
}

// Set appends v at t, or overwrites the last entry when it has the same timestamp.
func (s *Series) Set(t time.Time, v float64) error {
	return s.write(t, v, false)
}

// Accumulate appends v at t, or adds v to the last entry when it has the same timestamp.
func (s *Series) Accumulate(t time.Time, v float64) error {
	return s.write(t, v, true)
}

func (s *Series) write(t time.Time, v float64, add bool) error {
	n := len(s.points)
	if n > 0 {
		last := &s.points[n-1]
		if t.Equal(last.Time) {
			if add {
				last.Value += v
			} else {
				last.Value = v
			}
			return nil
		}
		if t.Before(last.Time) {
			return fmt.Errorf("%w: %s at %s, last %s", ErrOutOfOrder, s.name,
				t.Format(time.RFC3339), last.Time.Format(time.RFC3339))
		}
	}
	s.points = append(s.points, Point{Time: t, Value: v})
	return nil
}

// Len returns the number of entries.
func (s *Series) Len() int {
	return len(s.points)
}

// Last returns the most recent value, or 0 for an empty series.
func (s *Series) Last() float64 {
	if len(s.points) == 0 {
		return 0
	}
	return s.points[len(s.points)-1].Value
}

// LastPoint returns the most recent entry.
func (s *Series) LastPoint() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// At returns the i-th entry.
func (s *Series) At(i int) Point {
	return s.points[i]
}

// Sum returns the total of all values. Used for incremental series such as commission.
func (s *Series) Sum() float64 {
	var total float64
	for _, p := range s.points {
		total += p.Value
	}
	return total
}

// Points returns a copy of the entries.
func (s *Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Values returns the values without timestamps.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}
