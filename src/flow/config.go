package flow

import (
	"fmt"
	"math"
)

// Config holds arrival rates (events per unit time) and the distributions
// used to size and price generated orders.
type Config struct {
	LimitOrderRate   float64 `yaml:"limit_order_rate"`
	MarketOrderRate  float64 `yaml:"market_order_rate"`
	CancellationRate float64 `yaml:"cancellation_rate"`

	MeanOrderSize int64 `yaml:"mean_order_size"`
	OrderSizeStd  int64 `yaml:"order_size_std"`
	MinOrderSize  int64 `yaml:"min_order_size"`
	MaxOrderSize  int64 `yaml:"max_order_size"`

	TickSize              float64 `yaml:"tick_size"`
	MeanSpreadOffsetTicks float64 `yaml:"mean_spread_offset_ticks"`
	SpreadOffsetStdTicks  float64 `yaml:"spread_offset_std_ticks"`

	MarketOrderProbBuy float64 `yaml:"market_order_prob_buy"`

	BaseVolatility       float64 `yaml:"base_volatility"`
	VolatilityRegimeProb float64 `yaml:"volatility_regime_prob"`
	HighVolMultiplier    float64 `yaml:"high_vol_multiplier"`

	MeanLatency float64 `yaml:"mean_latency"`
	LatencyStd  float64 `yaml:"latency_std"`
}

func DefaultConfig() Config {
	return Config{
		LimitOrderRate:        10,
		MarketOrderRate:       2,
		CancellationRate:      5,
		MeanOrderSize:         100,
		OrderSizeStd:          30,
		MinOrderSize:          10,
		MaxOrderSize:          500,
		TickSize:              0.01,
		MeanSpreadOffsetTicks: 2,
		SpreadOffsetStdTicks:  3,
		MarketOrderProbBuy:    0.5,
		BaseVolatility:        0.02,
		VolatilityRegimeProb:  0.1,
		HighVolMultiplier:     3,
		MeanLatency:           0.001,
		LatencyStd:            0.0005,
	}
}

func (c Config) Validate() error {
	for name, rate := range map[string]float64{
		"limit_order_rate":  c.LimitOrderRate,
		"market_order_rate": c.MarketOrderRate,
		"cancellation_rate": c.CancellationRate,
	} {
		if !finite(rate) || rate < 0 {
			return fmt.Errorf("flow config: %s must be a finite non-negative rate, got %v", name, rate)
		}
	}
	if c.MaxOrderSize < max(1, c.MinOrderSize) {
		return fmt.Errorf("flow config: max_order_size %d below min_order_size %d", c.MaxOrderSize, c.MinOrderSize)
	}
	if c.OrderSizeStd < 0 {
		return fmt.Errorf("flow config: order_size_std must be non-negative")
	}
	if !finite(c.TickSize) || c.TickSize <= 0 {
		return fmt.Errorf("flow config: tick_size must be positive, got %v", c.TickSize)
	}
	if c.SpreadOffsetStdTicks < 0 || c.LatencyStd < 0 {
		return fmt.Errorf("flow config: standard deviations must be non-negative")
	}
	if c.MarketOrderProbBuy < 0 || c.MarketOrderProbBuy > 1 {
		return fmt.Errorf("flow config: market_order_prob_buy must be in [0, 1], got %v", c.MarketOrderProbBuy)
	}
	if c.VolatilityRegimeProb < 0 || c.VolatilityRegimeProb > 1 {
		return fmt.Errorf("flow config: volatility_regime_prob must be in [0, 1], got %v", c.VolatilityRegimeProb)
	}
	if !finite(c.BaseVolatility) || c.BaseVolatility <= 0 {
		return fmt.Errorf("flow config: base_volatility must be positive, got %v", c.BaseVolatility)
	}
	if !finite(c.HighVolMultiplier) || c.HighVolMultiplier <= 0 {
		return fmt.Errorf("flow config: high_vol_multiplier must be positive, got %v", c.HighVolMultiplier)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
