package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/quant/internal/broker"
	"github.com/newthinker/quant/internal/core"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Push(MarketEvent{Bar: core.Bar{Instrument: "RB"}})
	q.Push(SignalEvent{Intent: broker.Intent{Instrument: "RB"}})
	q.Push(OrderEvent{Order: &broker.Order{ID: 1}})
	q.Push(FillEvent{Order: &broker.Order{ID: 1}})
	assert.Equal(t, 4, q.Len())

	var kinds []EventKind
	for {
		ev, ok := q.Pop()
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind())
	}
	assert.Equal(t, []EventKind{EventMarket, EventSignal, EventOrder, EventFill}, kinds)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_InterleavedPushPop(t *testing.T) {
	q := NewQueue()
	q.Push(OrderEvent{Order: &broker.Order{ID: 1}})
	q.Push(OrderEvent{Order: &broker.Order{ID: 2}})

	ev, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, broker.OrderID(1), ev.(OrderEvent).Order.ID)

	q.Push(OrderEvent{Order: &broker.Order{ID: 3}})
	ev, _ = q.Pop()
	assert.Equal(t, broker.OrderID(2), ev.(OrderEvent).Order.ID)
	ev, _ = q.Pop()
	assert.Equal(t, broker.OrderID(3), ev.(OrderEvent).Order.ID)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Push(MarketEvent{})
	q.Push(MarketEvent{})
	q.Pop()
	q.Clear()

	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "MARKET", EventMarket.String())
	assert.Equal(t, "FILL", EventFill.String())
	assert.Equal(t, "UNKNOWN", EventKind(9).String())
}
