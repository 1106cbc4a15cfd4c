package simulator

import (
	"fmt"

	"lob-sim/src/flow"
)

type Config struct {
	InitialMidprice float64 `yaml:"initial_midprice"`
	InitialSpread   float64 `yaml:"initial_spread"`
	TickSize        float64 `yaml:"tick_size"`
	Seed            uint64  `yaml:"seed"`
	TimeStep        float64 `yaml:"time_step"`

	// background liquidity seeded on construction and reset
	LadderLevels   int   `yaml:"ladder_levels"`
	LadderBaseSize int64 `yaml:"ladder_base_size"`
	LadderSizeStep int64 `yaml:"ladder_size_step"`

	ImbalanceDepth     int     `yaml:"imbalance_depth"`
	DefaultInitialCash float64 `yaml:"default_initial_cash"`
	InventoryAlert     int64   `yaml:"inventory_alert"`

	Flow flow.Config `yaml:"flow"`
}

func DefaultConfig() Config {
	return Config{
		InitialMidprice:    100,
		InitialSpread:      0.02,
		TickSize:           0.01,
		Seed:               42,
		TimeStep:           0.1,
		LadderLevels:       10,
		LadderBaseSize:     100,
		LadderSizeStep:     10,
		ImbalanceDepth:     5,
		DefaultInitialCash: 100_000,
		InventoryAlert:     1000,
		Flow:               flow.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if !(c.InitialMidprice > 0) {
		return fmt.Errorf("simulator config: initial_midprice must be positive, got %v", c.InitialMidprice)
	}
	if c.InitialSpread < 0 {
		return fmt.Errorf("simulator config: initial_spread must be non-negative, got %v", c.InitialSpread)
	}
	if !(c.TickSize > 0) {
		return fmt.Errorf("simulator config: tick_size must be positive, got %v", c.TickSize)
	}
	if !(c.TimeStep > 0) {
		return fmt.Errorf("simulator config: time_step must be positive, got %v", c.TimeStep)
	}
	if c.LadderLevels < 0 || (c.LadderLevels > 0 && c.LadderBaseSize <= 0) || c.LadderSizeStep < 0 {
		return fmt.Errorf("simulator config: invalid liquidity ladder (levels=%d base=%d step=%d)",
			c.LadderLevels, c.LadderBaseSize, c.LadderSizeStep)
	}
	if c.ImbalanceDepth <= 0 {
		return fmt.Errorf("simulator config: imbalance_depth must be positive, got %d", c.ImbalanceDepth)
	}
	if c.InventoryAlert < 0 {
		return fmt.Errorf("simulator config: inventory_alert must be non-negative, got %d", c.InventoryAlert)
	}
	if err := c.Flow.Validate(); err != nil {
		return fmt.Errorf("simulator config: %w", err)
	}
	return nil
}
