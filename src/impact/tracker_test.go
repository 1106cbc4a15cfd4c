package impact

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker() *Tracker {
	return NewTracker(AlmgrenChriss{Eta: 0.001, Gamma: 0.0001, Sigma: 0.02, ExecutionTime: 1}, 0.5)
}

func TestTrackerAddTrade(t *testing.T) {
	tr := newTracker()

	temp, perm, err := tr.AddTrade(0, 100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.002, temp, 1e-12)
	assert.InDelta(t, 0.0002, perm, 1e-12)
	assert.InDelta(t, 0.0022, tr.TotalImpact(0), 1e-12)
	require.Len(t, tr.History(), 1)
}

func TestTrackerDecay(t *testing.T) {
	tr := newTracker()
	_, _, err := tr.AddTrade(0, 100, 100)
	require.NoError(t, err)

	assert.InDelta(t, 0.002*math.Exp(-0.5), tr.TemporaryImpact(1), 1e-12)
	// same instant again must not decay a second time
	assert.InDelta(t, 0.002*math.Exp(-0.5), tr.TemporaryImpact(1), 1e-12)
	assert.InDelta(t, 0.0002, tr.PermanentImpact(), 1e-12)

	_, _, err = tr.AddTrade(2, 100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.002*math.Exp(-1)+0.002, tr.TemporaryImpact(2), 1e-12)
	assert.InDelta(t, 0.0004, tr.PermanentImpact(), 1e-12)
}

func TestTrackerTemporaryImpactNonIncreasing(t *testing.T) {
	tr := newTracker()
	_, _, err := tr.AddTrade(0, 500, 100)
	require.NoError(t, err)

	prev := math.Abs(tr.TemporaryImpact(0))
	for ts := 0.1; ts < 20; ts += 0.1 {
		cur := math.Abs(tr.TemporaryImpact(ts))
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestTrackerRejectsTimeRegression(t *testing.T) {
	tr := newTracker()
	_, _, err := tr.AddTrade(5, 100, 100)
	require.NoError(t, err)
	before := tr.TotalImpact(5)

	_, _, err = tr.AddTrade(4, 100, 100)
	assert.ErrorIs(t, err, ErrTimeRegression)
	assert.Len(t, tr.History(), 1)
	assert.Equal(t, before, tr.TotalImpact(5))
}

func TestTrackerRejectsNonFiniteTrade(t *testing.T) {
	tr := newTracker()
	_, _, err := tr.AddTrade(1, 100, 100)
	require.NoError(t, err)

	for _, tc := range []struct{ t, volume float64 }{
		{math.NaN(), 100},
		{2, math.NaN()},
		{math.Inf(1), 100},
		{2, math.Inf(-1)},
	} {
		_, _, err := tr.AddTrade(tc.t, tc.volume, 100)
		assert.ErrorIs(t, err, ErrNonFiniteTrade)
	}
	assert.Len(t, tr.History(), 1)
	assert.Equal(t, 1.0, tr.LastUpdate())
	assert.InDelta(t, 0.0002, tr.PermanentImpact(), 1e-12)
	assert.False(t, math.IsNaN(tr.TotalImpact(1)))
}

func TestTrackerReset(t *testing.T) {
	tr := newTracker()
	_, _, err := tr.AddTrade(3, 100, 100)
	require.NoError(t, err)

	tr.Reset()
	assert.Empty(t, tr.History())
	assert.Equal(t, 0.0, tr.TotalImpact(0))
	assert.Equal(t, 0.0, tr.LastUpdate())
}
