package simulator

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob-sim/src/engine"
	"lob-sim/src/metrics"
)

func newSimulator(t *testing.T, opts ...Option) *Simulator {
	t.Helper()
	sim, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	return sim
}

func TestNewSeedsLadder(t *testing.T) {
	sim := newSimulator(t)

	state := sim.MarketState()
	assert.True(t, state.HasBid)
	assert.True(t, state.HasAsk)
	assert.Equal(t, 99.99, state.BestBid)
	assert.Equal(t, 100.01, state.BestAsk)
	assert.InDelta(t, 100.0, state.Midprice, 1e-9)
	assert.Equal(t, 0.0, state.Imbalance)

	depth := sim.Book().BookDepth(10)
	require.Len(t, depth.Bids, 10)
	require.Len(t, depth.Asks, 10)
	assert.Equal(t, int64(100), depth.Bids[0].Size)
	assert.Equal(t, int64(190), depth.Asks[9].Size)
	assert.Equal(t, 20, sim.Book().RestingOrders())
}

func TestStepAdvancesClockAndHistory(t *testing.T) {
	sim := newSimulator(t)

	for i := 0; i < 5; i++ {
		_, err := sim.Step(1.0)
		require.NoError(t, err)
	}

	assert.Equal(t, 5.0, sim.CurrentTime())
	assert.Equal(t, 5.0, sim.Book().CurrentTime())
	history := sim.StateHistory()
	require.Len(t, history, 5)
	assert.Equal(t, 1.0, history[0].Timestamp)
	assert.Equal(t, 5.0, history[4].Timestamp)
	assert.Greater(t, history[4].NumTrades, int64(0))
}

func TestStepRejectsBadDuration(t *testing.T) {
	sim := newSimulator(t)

	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := sim.Step(d)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	}
	assert.Empty(t, sim.StateHistory())
}

func TestStepFillsMatchCounters(t *testing.T) {
	sim := newSimulator(t)

	var volume int64
	var trades int64
	for i := 0; i < 20; i++ {
		fills, err := sim.Step(0.5)
		require.NoError(t, err)
		for _, f := range fills {
			volume += f.Size
			trades++
			assert.GreaterOrEqual(t, f.Timestamp, 0.0)
		}
	}
	assert.Equal(t, volume, sim.Book().TotalVolume())
	assert.Equal(t, trades, sim.Book().TotalTrades())
}

func TestSameSeedSameRun(t *testing.T) {
	run := func() []MarketState {
		sim := newSimulator(t)
		for i := 0; i < 10; i++ {
			_, err := sim.Step(1.0)
			require.NoError(t, err)
		}
		return sim.StateHistory()
	}
	assert.Equal(t, run(), run())
}

func TestResetRestoresInitialState(t *testing.T) {
	sim := newSimulator(t)
	initial := sim.BookSnapshot()

	_, err := sim.SubmitMMOrder("mm_1", engine.SideBuy, 99.5, 10)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := sim.Step(1.0)
		require.NoError(t, err)
	}
	first := sim.StateHistory()

	require.NoError(t, sim.Reset())
	assert.Equal(t, 0.0, sim.CurrentTime())
	assert.Empty(t, sim.StateHistory())
	assert.Empty(t, sim.MarketMakers())
	assert.Equal(t, initial, sim.BookSnapshot())

	for i := 0; i < 3; i++ {
		_, err := sim.Step(1.0)
		require.NoError(t, err)
	}
	assert.Len(t, sim.StateHistory(), len(first))
}

func TestResetWithSeedReplays(t *testing.T) {
	sim := newSimulator(t)
	require.NoError(t, sim.ResetWithSeed(7))
	_, err := sim.Step(2.0)
	require.NoError(t, err)
	a := sim.StateHistory()

	require.NoError(t, sim.ResetWithSeed(7))
	_, err = sim.Step(2.0)
	require.NoError(t, err)
	assert.Equal(t, a, sim.StateHistory())
	assert.Equal(t, uint64(7), sim.Seed())
}

func TestRunSimulationSummary(t *testing.T) {
	sim := newSimulator(t)

	summary, err := sim.RunSimulation(5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.NumSteps)
	assert.Equal(t, sim.Book().TotalTrades(), summary.TotalTrades)
	assert.Equal(t, sim.Book().TotalVolume(), summary.TotalVolume)
	assert.Equal(t, int(summary.TotalTrades), summary.NumFills)
	require.NotNil(t, summary.FinalState)
	assert.Equal(t, 5.0, summary.FinalState.Timestamp)
	assert.Greater(t, summary.AvgMidprice, 0.0)
	assert.GreaterOrEqual(t, summary.MidpriceStd, 0.0)
	assert.GreaterOrEqual(t, summary.AvgVolatility, DefaultConfig().Flow.BaseVolatility)

	// default time step
	summary, err = sim.RunSimulation(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.NumSteps)
}

func TestMetricsObserved(t *testing.T) {
	collector := metrics.NewCollector()
	sim := newSimulator(t, WithMetrics(collector))

	_, err := sim.Step(1)
	require.NoError(t, err)
	_, err = sim.Step(1)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.StepsTotal))
	assert.Equal(t, float64(sim.Book().TotalVolume()), testutil.ToFloat64(collector.VolumeTotal))
}

func TestStepObserver(t *testing.T) {
	var states []MarketState
	var fills int
	sim := newSimulator(t, WithStepObserver(func(state MarketState, f []engine.Fill) {
		states = append(states, state)
		fills += len(f)
	}))

	_, err := sim.RunSimulation(3, 1)
	require.NoError(t, err)
	assert.Equal(t, sim.StateHistory(), states)
	assert.Equal(t, int(sim.Book().TotalTrades()), fills)
}

func TestMarketStateFallsBackWhenSideEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LadderLevels = 0
	sim, err := New(cfg)
	require.NoError(t, err)

	state := sim.MarketState()
	assert.False(t, state.HasBid)
	assert.False(t, state.HasAsk)
	assert.Equal(t, cfg.InitialMidprice, state.Midprice)
	assert.Equal(t, cfg.InitialSpread, state.Spread)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.TickSize = 0
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.ImbalanceDepth = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Flow.LimitOrderRate = -3
	assert.Error(t, cfg.Validate())
}
