package flow

import "math/rand/v2"

// VolatilityRegime flips between a base and a high volatility state with a
// fixed probability on every update.
type VolatilityRegime struct {
	base       float64
	multiplier float64
	switchProb float64

	high    bool
	current float64
}

func NewVolatilityRegime(base, multiplier, switchProb float64) *VolatilityRegime {
	return &VolatilityRegime{
		base:       base,
		multiplier: multiplier,
		switchProb: switchProb,
		current:    base,
	}
}

// Update draws one switch decision from rng and returns the resulting volatility.
func (r *VolatilityRegime) Update(rng *rand.Rand) float64 {
	if rng.Float64() < r.switchProb {
		r.high = !r.high
	}
	if r.high {
		r.current = r.base * r.multiplier
	} else {
		r.current = r.base
	}
	return r.current
}

func (r *VolatilityRegime) Current() float64 {
	return r.current
}

func (r *VolatilityRegime) IsHigh() bool {
	return r.high
}

func (r *VolatilityRegime) reset() {
	r.high = false
	r.current = r.base
}
