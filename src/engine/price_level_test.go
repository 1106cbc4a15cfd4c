package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resting(t *testing.T, id int64, size int64) *RestingOrder {
	t.Helper()
	o, err := NewLimitOrder(id, SideBuy, 100, size, float64(id))
	require.NoError(t, err)
	return &RestingOrder{Order: o, Remaining: size, Ticks: 10000}
}

func TestPriceLevelAddOrder(t *testing.T) {
	level := NewPriceLevel(10000)
	level.AddOrder(resting(t, 1, 100))

	assert.Equal(t, int64(100), level.TotalSize())
	assert.Equal(t, 1, level.Len())
}

func TestPriceLevelRemoveOrder(t *testing.T) {
	level := NewPriceLevel(10000)
	level.AddOrder(resting(t, 1, 100))
	level.AddOrder(resting(t, 2, 50))

	removed, ok := level.RemoveOrder(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), removed.Order.ID)
	assert.Equal(t, int64(50), level.TotalSize())
	assert.Equal(t, 1, level.Len())

	_, ok = level.RemoveOrder(1)
	assert.False(t, ok)
}

// Removing from the middle of the queue keeps the others in arrival order.
func TestPriceLevelRemoveFromMiddle(t *testing.T) {
	level := NewPriceLevel(10000)
	for i := int64(1); i <= 3; i++ {
		level.AddOrder(resting(t, i, 10*i))
	}

	_, ok := level.RemoveOrder(2)
	require.True(t, ok)

	orders := level.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, int64(1), orders[0].Order.ID)
	assert.Equal(t, int64(3), orders[1].Order.ID)
	assert.Equal(t, int64(40), level.TotalSize())
}

func TestPriceLevelQueuePosition(t *testing.T) {
	level := NewPriceLevel(10000)
	for i := int64(0); i < 5; i++ {
		level.AddOrder(resting(t, i, 100))
	}

	pos, ok := level.QueuePosition(0)
	require.True(t, ok)
	assert.Equal(t, QueuePosition{Position: 0, SizeAhead: 100}, pos)

	pos, ok = level.QueuePosition(2)
	require.True(t, ok)
	assert.Equal(t, QueuePosition{Position: 2, SizeAhead: 300}, pos)

	pos, ok = level.QueuePosition(4)
	require.True(t, ok)
	assert.Equal(t, QueuePosition{Position: 4, SizeAhead: 500}, pos)

	_, ok = level.QueuePosition(99)
	assert.False(t, ok)
}

func TestPriceLevelHeadConsumption(t *testing.T) {
	level := NewPriceLevel(10000)
	level.AddOrder(resting(t, 1, 30))
	level.AddOrder(resting(t, 2, 30))

	head, done := level.fill(10)
	assert.False(t, done)
	assert.Equal(t, int64(20), head.Remaining)
	assert.Equal(t, int64(50), level.TotalSize())

	head, done = level.fill(20)
	assert.True(t, done)
	assert.Equal(t, int64(1), head.Order.ID)
	assert.Equal(t, int64(2), level.Head().Order.ID)
	assert.Equal(t, int64(30), level.TotalSize())
}
