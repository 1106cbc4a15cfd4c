package impact

import (
	"fmt"
	"math"
)

// Model turns a signed traded volume (buy positive, sell negative) into
// signed price deltas.
type Model interface {
	TemporaryImpact(volume, mid float64) float64
	PermanentImpact(volume, mid float64) float64
}

type Kind string

const (
	KindAlmgrenChriss Kind = "almgren_chriss"
	KindSquareRoot    Kind = "square_root"
	KindLinear        Kind = "linear"
)

// Config selects one model kind and carries the parameters of every kind.
type Config struct {
	Kind          Kind          `yaml:"kind"`
	DecayRate     float64       `yaml:"decay_rate"`
	AlmgrenChriss AlmgrenChriss `yaml:"almgren_chriss"`
	SquareRoot    SquareRoot    `yaml:"square_root"`
	Linear        Linear        `yaml:"linear"`
}

func DefaultConfig() Config {
	return Config{
		Kind:          KindAlmgrenChriss,
		DecayRate:     0.5,
		AlmgrenChriss: DefaultAlmgrenChriss(),
		SquareRoot:    DefaultSquareRoot(),
		Linear:        DefaultLinear(),
	}
}

// New returns the model selected by cfg.Kind.
func New(cfg Config) (Model, error) {
	switch cfg.Kind {
	case KindAlmgrenChriss:
		m := cfg.AlmgrenChriss
		if m.ExecutionTime <= 0 {
			return nil, fmt.Errorf("almgren_chriss: execution_time must be positive, got %v", m.ExecutionTime)
		}
		return m, nil
	case KindSquareRoot:
		m := cfg.SquareRoot
		if m.DailyVolume <= 0 {
			return nil, fmt.Errorf("square_root: daily_volume must be positive, got %v", m.DailyVolume)
		}
		return m, nil
	case KindLinear:
		m := cfg.Linear
		if m.PermanentFraction < 0 || m.PermanentFraction > 1 {
			return nil, fmt.Errorf("linear: permanent_fraction must be in [0, 1], got %v", m.PermanentFraction)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown impact model kind %q", cfg.Kind)
	}
}

// AlmgrenChriss splits impact into a temporary part that scales with trading
// urgency and a permanent drift proportional to volume.
type AlmgrenChriss struct {
	Gamma         float64 `yaml:"gamma"`   // permanent coefficient
	Eta           float64 `yaml:"eta"`     // temporary coefficient
	Epsilon       float64 `yaml:"epsilon"` // fixed cost per trade
	Sigma         float64 `yaml:"sigma"`
	ExecutionTime float64 `yaml:"execution_time"`
}

func DefaultAlmgrenChriss() AlmgrenChriss {
	return AlmgrenChriss{Gamma: 0.0001, Eta: 0.001, Sigma: 0.02, ExecutionTime: 1}
}

func (m AlmgrenChriss) TemporaryImpact(volume, mid float64) float64 {
	return m.TemporaryImpactOver(volume, mid, m.ExecutionTime)
}

// TemporaryImpactOver is η·|v|·σ/√T + ε·sign(v) for an explicit execution time T.
func (m AlmgrenChriss) TemporaryImpactOver(volume, _ float64, executionTime float64) float64 {
	if volume == 0 {
		return 0
	}
	return m.Eta*math.Abs(volume)*m.Sigma/math.Sqrt(executionTime) + m.Epsilon*sign(volume)
}

func (m AlmgrenChriss) PermanentImpact(volume, _ float64) float64 {
	if volume == 0 {
		return 0
	}
	return m.Gamma * volume * m.Sigma
}

// SquareRoot is the square-root law against average daily volume. Thirty
// percent of the temporary impact is treated as permanent.
type SquareRoot struct {
	Beta        float64 `yaml:"beta"`
	DailyVolume float64 `yaml:"daily_volume"`
	Sigma       float64 `yaml:"sigma"`
}

const squareRootPermanentShare = 0.3

func DefaultSquareRoot() SquareRoot {
	return SquareRoot{Beta: 0.5, DailyVolume: 1_000_000, Sigma: 0.02}
}

func (m SquareRoot) TemporaryImpact(volume, _ float64) float64 {
	if volume == 0 {
		return 0
	}
	return m.Beta * m.Sigma * math.Sqrt(math.Abs(volume)/m.DailyVolume) * sign(volume)
}

func (m SquareRoot) PermanentImpact(volume, mid float64) float64 {
	return squareRootPermanentShare * m.TemporaryImpact(volume, mid)
}

type Linear struct {
	Alpha             float64 `yaml:"alpha"`
	PermanentFraction float64 `yaml:"permanent_fraction"`
}

func DefaultLinear() Linear {
	return Linear{Alpha: 0.0001, PermanentFraction: 0.5}
}

func (m Linear) TemporaryImpact(volume, _ float64) float64 {
	return m.Alpha * volume * (1 - m.PermanentFraction)
}

func (m Linear) PermanentImpact(volume, _ float64) float64 {
	return m.Alpha * volume * m.PermanentFraction
}

// TotalImpact returns the (temporary, permanent) pair.
func TotalImpact(m Model, volume, mid float64) (float64, float64) {
	return m.TemporaryImpact(volume, mid), m.PermanentImpact(volume, mid)
}

// ExecutionCost is |v|·(temporary + permanent/2).
func ExecutionCost(m Model, volume, mid float64) float64 {
	temp, perm := TotalImpact(m, volume, mid)
	return math.Abs(volume) * (temp + perm/2)
}

// DecayTemporaryImpact applies exponential decay over elapsed time.
func DecayTemporaryImpact(impact, elapsed, rate float64) float64 {
	return impact * math.Exp(-rate*elapsed)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
