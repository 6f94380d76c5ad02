package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return t0.AddDate(0, 0, n)
}

func TestSeries_SetCoalescesSameTimestamp(t *testing.T) {
	s := NewSeries("equity")

	require.NoError(t, s.Set(day(0), 100))
	require.NoError(t, s.Set(day(0), 95))
	require.NoError(t, s.Set(day(1), 97))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{95, 97}, s.Values())
	assert.Equal(t, 97.0, s.Last())
}

func TestSeries_AccumulateAddsSameTimestamp(t *testing.T) {
	s := NewSeries("commission")

	require.NoError(t, s.Accumulate(day(0), 0))
	require.NoError(t, s.Accumulate(day(0), 1.5))
	require.NoError(t, s.Accumulate(day(0), 2.5))
	require.NoError(t, s.Accumulate(day(1), 1))

	assert.Equal(t, []float64{4, 1}, s.Values())
	assert.InDelta(t, 5.0, s.Sum(), 1e-9)
}

func TestSeries_RejectsOutOfOrderWrite(t *testing.T) {
	s := NewSeries("position")
	require.NoError(t, s.Set(day(2), 1))

	err := s.Set(day(1), 2)
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, 1, s.Len())
}

func TestSeries_Empty(t *testing.T) {
	s := NewSeries("cash")
	assert.Zero(t, s.Last())
	_, ok := s.LastPoint()
	assert.False(t, ok)
	assert.Empty(t, s.Points())
}

func TestSeries_PointsIsCopy(t *testing.T) {
	s := NewSeries("x")
	require.NoError(t, s.Set(day(0), 1))

	pts := s.Points()
	pts[0].Value = 42
	assert.Equal(t, 1.0, s.At(0).Value)
}

func TestStore_SeriesCreatedPerInstrument(t *testing.T) {
	st := NewStore()

	require.NoError(t, st.Set("RB", Position, day(0), 2))
	require.NoError(t, st.Set("CU", Position, day(0), -1))
	require.NoError(t, st.Global(Equity).Set(day(0), 1000))

	assert.Equal(t, []string{"CU", "RB"}, st.Instruments())
	assert.Equal(t, 2.0, st.Last("RB", Position))
	assert.Equal(t, -1.0, st.Last("CU", Position))
	assert.Equal(t, 1000.0, st.Global(Equity).Last())
	assert.Equal(t, "RB.position", st.Series("RB", Position).Name())
}

func TestStore_AccumulateAndMissingFields(t *testing.T) {
	st := NewStore()

	require.NoError(t, st.Accumulate("RB", Commission, day(0), 3))
	require.NoError(t, st.Accumulate("RB", Commission, day(0), 4))

	assert.Equal(t, 7.0, st.Last("RB", Commission))
	assert.Zero(t, st.Last("RB", Realized))
	assert.Zero(t, st.Global(Cash).Len())
}
