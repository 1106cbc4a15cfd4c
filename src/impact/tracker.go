package impact

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrTimeRegression = errors.New("trade timestamp precedes the last impact update")
	ErrNonFiniteTrade = errors.New("trade timestamp and volume must be finite")
)

type Trade struct {
	Timestamp float64 `json:"timestamp"`
	Volume    float64 `json:"volume"`
	Temporary float64 `json:"temporary_impact"`
	Permanent float64 `json:"permanent_impact"`
}

// Tracker accumulates the impact of a trade sequence. Temporary impact decays
// exponentially between updates; permanent impact never decays.
type Tracker struct {
	model     Model
	decayRate float64

	history    []Trade
	temporary  float64
	permanent  float64
	lastUpdate float64
}

func NewTracker(model Model, decayRate float64) *Tracker {
	return &Tracker{model: model, decayRate: decayRate}
}

// AddTrade decays the running temporary impact up to t, then adds the trade's
// own impact. A non-finite input or a t before the last update is rejected
// without side effects.
func (tr *Tracker) AddTrade(t, volume, mid float64) (float64, float64, error) {
	if !finite(t) || !finite(volume) {
		return 0, 0, fmt.Errorf("%w: t=%v volume=%v", ErrNonFiniteTrade, t, volume)
	}
	if t < tr.lastUpdate {
		return 0, 0, fmt.Errorf("%w: %v < %v", ErrTimeRegression, t, tr.lastUpdate)
	}
	tr.decay(t)

	temp, perm := TotalImpact(tr.model, volume, mid)
	tr.temporary += temp
	tr.permanent += perm
	tr.history = append(tr.history, Trade{Timestamp: t, Volume: volume, Temporary: temp, Permanent: perm})
	return temp, perm, nil
}

// decay moves lastUpdate forward so a second query at the same t is a no-op.
// Earlier times leave the state untouched.
func (tr *Tracker) decay(t float64) {
	if elapsed := t - tr.lastUpdate; elapsed > 0 {
		tr.temporary = DecayTemporaryImpact(tr.temporary, elapsed, tr.decayRate)
		tr.lastUpdate = t
	}
}

func (tr *Tracker) TotalImpact(t float64) float64 {
	tr.decay(t)
	return tr.temporary + tr.permanent
}

func (tr *Tracker) TemporaryImpact(t float64) float64 {
	tr.decay(t)
	return tr.temporary
}

func (tr *Tracker) PermanentImpact() float64 {
	return tr.permanent
}

func (tr *Tracker) LastUpdate() float64 {
	return tr.lastUpdate
}

func (tr *Tracker) History() []Trade {
	return slices.Clone(tr.history)
}

func (tr *Tracker) Model() Model {
	return tr.model
}

func (tr *Tracker) Reset() {
	tr.history = nil
	tr.temporary = 0
	tr.permanent = 0
	tr.lastUpdate = 0
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
