package flow

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob-sim/src/engine"
)

func newGenerator(t *testing.T, seed uint64, opts ...GeneratorOption) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultConfig(), seed, opts...)
	require.NoError(t, err)
	return g
}

func TestSameSeedSameSequence(t *testing.T) {
	a := newGenerator(t, 42)
	b := newGenerator(t, 42)

	ordersA, volsA := a.GenerateOrderFlowSequence(10, 100, 0.02)
	ordersB, volsB := b.GenerateOrderFlowSequence(10, 100, 0.02)

	require.NotEmpty(t, ordersA)
	assert.Equal(t, ordersA, ordersB)
	assert.Equal(t, volsA, volsB)

	c := newGenerator(t, 43)
	ordersC, _ := c.GenerateOrderFlowSequence(10, 100, 0.02)
	assert.NotEqual(t, ordersA, ordersC)
}

func TestResetReplaysSequence(t *testing.T) {
	g := newGenerator(t, 7)
	first, _ := g.GenerateOrderFlowSequence(5, 100, 0.02)

	g.Reset()
	assert.Empty(t, g.Outstanding())
	assert.False(t, g.IsHighVolatility())
	assert.Equal(t, DefaultConfig().BaseVolatility, g.CurrentVolatility())

	again, _ := g.GenerateOrderFlowSequence(5, 100, 0.02)
	assert.Equal(t, first, again)
}

func TestGeneratedOrdersAreValid(t *testing.T) {
	cfg := DefaultConfig()
	g := newGenerator(t, 1)
	orders, vols := g.GenerateOrderFlowSequence(50, 100, 0.02)
	require.NotEmpty(t, orders)
	assert.GreaterOrEqual(t, len(vols), len(orders), "one volatility per event, cancels may be skipped")

	grid, err := engine.NewTickGrid(cfg.TickSize)
	require.NoError(t, err)

	for _, o := range orders {
		require.NoError(t, o.Validate())
		assert.GreaterOrEqual(t, o.Timestamp, 0.0)
		assert.Less(t, o.Timestamp, 50.0)
		switch o.Type {
		case engine.TypeLimit, engine.TypeMarket:
			assert.GreaterOrEqual(t, o.Size, cfg.MinOrderSize)
			assert.LessOrEqual(t, o.Size, cfg.MaxOrderSize)
			assert.GreaterOrEqual(t, o.Latency, 0.0)
			assert.Regexp(t, `^trader_\d+$`, o.TraderID)
		}
		if o.Type == engine.TypeLimit {
			assert.Equal(t, grid.Round(o.Price), o.Price, "limit price on the tick grid")
		}
	}
}

func TestTimestampsSorted(t *testing.T) {
	g := newGenerator(t, 3)
	orders, _ := g.GenerateOrderFlowAt(20, 5, 100, 0.02)
	require.NotEmpty(t, orders)

	assert.True(t, slices.IsSortedFunc(orders, func(a, b engine.Order) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	}))
	assert.GreaterOrEqual(t, orders[0].Timestamp, 20.0)
	assert.Less(t, orders[len(orders)-1].Timestamp, 25.0)
}

func TestLimitSidesStraddleMid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseVolatility = 1e-9 // keep the local mid pinned near 100
	g, err := NewGenerator(cfg, 11)
	require.NoError(t, err)

	orders, _ := g.GenerateOrderFlowSequence(20, 100, 0.02)
	for _, o := range orders {
		if o.Type != engine.TypeLimit {
			continue
		}
		if o.Side == engine.SideBuy {
			assert.LessOrEqual(t, o.Price, 99.99)
		} else {
			assert.GreaterOrEqual(t, o.Price, 100.01)
		}
	}
}

func TestLimitPriceFlooredAtOneTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarketOrderRate = 0
	cfg.CancellationRate = 0
	g, err := NewGenerator(cfg, 5)
	require.NoError(t, err)

	orders, _ := g.GenerateOrderFlowSequence(10, 0.01, 0.02)
	require.NotEmpty(t, orders)
	for _, o := range orders {
		assert.GreaterOrEqual(t, o.Price, 0.01)
	}
}

func TestCancellationWithNoOutstandingOrders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LimitOrderRate = 0
	cfg.MarketOrderRate = 0
	g, err := NewGenerator(cfg, 9)
	require.NoError(t, err)

	orders, vols := g.GenerateOrderFlowSequence(10, 100, 0.02)
	assert.Empty(t, orders)
	assert.NotEmpty(t, vols, "the regime still updates on every cancellation event")
}

func TestCancellationsTargetOwnOrders(t *testing.T) {
	g := newGenerator(t, 21)
	orders, _ := g.GenerateOrderFlowSequence(30, 100, 0.02)

	issued := map[int64]bool{}
	cancelled := map[int64]bool{}
	for _, o := range orders {
		switch o.Type {
		case engine.TypeLimit:
			issued[o.ID] = true
		case engine.TypeCancel:
			assert.True(t, issued[o.ID], "cancel of %d precedes its limit order", o.ID)
			assert.False(t, cancelled[o.ID], "order %d cancelled twice", o.ID)
			cancelled[o.ID] = true
		}
	}
	require.NotEmpty(t, cancelled)
	for _, id := range g.Outstanding() {
		assert.False(t, cancelled[id])
	}
}

func TestIDSourceInjection(t *testing.T) {
	next := int64(1000)
	g := newGenerator(t, 2, WithIDSource(func() int64 {
		next++
		return next
	}))

	orders, _ := g.GenerateOrderFlowSequence(5, 100, 0.02)
	require.NotEmpty(t, orders)
	for _, o := range orders {
		assert.Greater(t, o.ID, int64(1000))
	}
}

func TestNonPositiveDurationYieldsNothing(t *testing.T) {
	g := newGenerator(t, 2)
	orders, vols := g.GenerateOrderFlowSequence(0, 100, 0.02)
	assert.Empty(t, orders)
	assert.Empty(t, vols)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.LimitOrderRate = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxOrderSize = 5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MarketOrderProbBuy = 1.5
	assert.Error(t, cfg.Validate())

	_, err := NewGenerator(cfg, 1)
	assert.Error(t, err)
}
