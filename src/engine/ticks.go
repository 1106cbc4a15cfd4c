package engine

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Ticks is a price expressed as an integer number of tick increments.
type Ticks int64

var ErrInvalidTickSize = errors.New("tick size must be a positive finite number")

// TickGrid converts between boundary float prices and internal tick counts.
// Conversion goes through decimal so 99.96 stays 9996 ticks instead of drifting.
type TickGrid struct {
	size  decimal.Decimal
	sizeF float64
}

func NewTickGrid(tickSize float64) (TickGrid, error) {
	if tickSize <= 0 || math.IsNaN(tickSize) || math.IsInf(tickSize, 0) {
		return TickGrid{}, ErrInvalidTickSize
	}
	return TickGrid{
		size:  decimal.NewFromFloat(tickSize),
		sizeF: tickSize,
	}, nil
}

func (g TickGrid) Size() float64 {
	return g.sizeF
}

// ToTicks rounds price to the nearest tick; exact halves go to the even tick.
func (g TickGrid) ToTicks(price float64) Ticks {
	return Ticks(decimal.NewFromFloat(price).Div(g.size).RoundBank(0).IntPart())
}

func (g TickGrid) ToPrice(t Ticks) float64 {
	return decimal.NewFromInt(int64(t)).Mul(g.size).InexactFloat64()
}

// Round snaps price onto the grid.
func (g TickGrid) Round(price float64) float64 {
	return g.ToPrice(g.ToTicks(price))
}
