package flow

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVolatilityRegimeSwitching(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	always := NewVolatilityRegime(0.02, 3, 1)
	assert.InDelta(t, 0.06, always.Update(rng), 1e-12)
	assert.True(t, always.IsHigh())
	assert.InDelta(t, 0.02, always.Update(rng), 1e-12)
	assert.False(t, always.IsHigh())

	never := NewVolatilityRegime(0.02, 3, 0)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0.02, never.Update(rng))
	}
	assert.Equal(t, 0.02, never.Current())
}
