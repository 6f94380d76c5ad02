package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/quant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rb = core.Contract{
	Instrument:   "RB",
	Multiplier:   10,
	Lots:         1,
	ExecMode:     core.PriceClose,
	TrailingMode: core.PriceClose,
}

func drain(t *testing.T, f Feed) []core.Bar {
	t.Helper()
	var bars []core.Bar
	for {
		b, ok, err := f.Next()
		require.NoError(t, err)
		if !ok {
			return bars
		}
		bars = append(bars, b)
	}
}

func TestSlice(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := NewSlice(rb, []core.Bar{
		{Time: day, Open: 1, High: 1, Low: 1, Close: 1},
		{Time: day.AddDate(0, 0, 1), Open: 2, High: 2, Low: 2, Close: 2},
	})

	bars := drain(t, s)
	require.Len(t, bars, 2)
	assert.Equal(t, "RB", bars[0].Instrument)

	s.Reset()
	assert.Len(t, drain(t, s), 2)
}

func TestCSV_HeaderByName(t *testing.T) {
	data := `close,time,open,high,low,volume
10.5,2024-01-02 09:00:00,10,11,9.5,100
11,2024-01-03 09:00:00,10.5,11.5,10,200
`
	bars := drain(t, NewCSV(strings.NewReader(data), rb, Options{}))

	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 10.0, bars[0].Open)
	assert.Equal(t, 11.0, bars[0].High)
	assert.Equal(t, 9.5, bars[0].Low)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, int64(200), bars[1].Volume)
	assert.Equal(t, "RB", bars[1].Instrument)
}

func TestCSV_NoHeaderPositional(t *testing.T) {
	data := "2024-01-02,10,11,9,10.5\n\n2024/1/3 15:00,10.5,12,10,11\n"
	bars := drain(t, NewCSV(strings.NewReader(data), rb, Options{}))

	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), bars[1].Time)
	assert.Zero(t, bars[0].Volume)
}

func TestCSV_DateRange(t *testing.T) {
	data := `date,open,high,low,close
2024-01-01,1,1,1,1
2024-01-02,2,2,2,2
2024-01-03,3,3,3,3
2024-01-04,4,4,4,4
`
	f := NewCSV(strings.NewReader(data), rb, Options{
		From: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	})
	bars := drain(t, f)

	require.Len(t, bars, 2)
	assert.Equal(t, 2.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[1].Close)
}

func TestCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad price", "time,open,high,low,close\n2024-01-02,x,1,1,1\n"},
		{"bad time", "time,open,high,low,close\nyesterday,1,1,1,1\n"},
		{"inconsistent range", "time,open,high,low,close\n2024-01-02,5,4,3,4\n"},
		{"missing column", "time,open,high,low\n2024-01-02,1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewCSV(strings.NewReader(tt.data), rb, Options{}).Next()
			assert.Error(t, err)
		})
	}
}

func TestOpenCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rb.csv")
	require.NoError(t, os.WriteFile(path, []byte("time,open,high,low,close\n2024-01-02,1,2,1,2\n"), 0o644))

	f, err := OpenCSV(path, rb, Options{})
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, drain(t, f), 1)

	_, err = OpenCSV(filepath.Join(t.TempDir(), "missing.csv"), rb, Options{})
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(rb))

	bad := rb
	bad.Multiplier = 0
	assert.ErrorIs(t, Validate(bad), core.ErrConfigInvalid)

	bad = rb
	bad.ExecMode = "mid"
	assert.ErrorIs(t, Validate(bad), core.ErrConfigInvalid)

	bad = rb
	bad.Instrument = ""
	assert.ErrorIs(t, Validate(bad), core.ErrConfigInvalid)
}
