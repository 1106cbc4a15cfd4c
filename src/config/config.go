package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"lob-sim/src/impact"
	"lob-sim/src/logger"
	"lob-sim/src/simulator"
)

type ServerConfig struct {
	Port                   string        `yaml:"port"`
	ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	RateLimitDisabled      bool          `yaml:"rate_limit_disabled"`
	RateLimitMax           int           `yaml:"rate_limit_max"`
	RateLimitWindow        time.Duration `yaml:"rate_limit_window"`
	MaxConcurrentRequests  int64         `yaml:"max_concurrent_requests"`
	MaintenanceMode        bool          `yaml:"maintenance_mode"`
	RequestLoggingDisabled bool          `yaml:"request_logging_disabled"`
	OrderbookDefaultDepth  int           `yaml:"orderbook_default_depth"`
	OrderbookMaxDepth      int           `yaml:"orderbook_max_depth"`
	HistoryMaxLimit        int           `yaml:"history_max_limit"`
	MaxStepsPerRequest     int           `yaml:"max_steps_per_request"`
}

// RunConfig drives headless mode.
type RunConfig struct {
	Headless   bool    `yaml:"headless"`
	Duration   float64 `yaml:"duration"`
	TimeStep   float64 `yaml:"time_step"`
	RecordPath string  `yaml:"record_path"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        logger.Options   `yaml:"log"`
	Simulation simulator.Config `yaml:"simulation"`
	Impact     impact.Config    `yaml:"impact"`
	Run        RunConfig        `yaml:"run"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                  "8080",
			ShutdownTimeout:       10 * time.Second,
			RateLimitMax:          100,
			RateLimitWindow:       time.Second,
			OrderbookDefaultDepth: 10,
			OrderbookMaxDepth:     1000,
			HistoryMaxLimit:       10000,
			MaxStepsPerRequest:    1000,
		},
		Log: logger.Options{
			Level:  "info",
			Format: "json",
		},
		Simulation: simulator.DefaultConfig(),
		Impact:     impact.DefaultConfig(),
		Run: RunConfig{
			Duration: 60,
			TimeStep: 0.1,
		},
	}
}

// Load layers defaults, the optional YAML file at path, then environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Server
	s.Port = getEnv("PORT", s.Port)
	s.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.RateLimitDisabled = getEnvFlag("RATE_LIMIT_DISABLED", s.RateLimitDisabled)
	s.RateLimitMax = getEnvInt("RATE_LIMIT_MAX", s.RateLimitMax)
	s.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", s.RateLimitWindow)
	s.MaxConcurrentRequests = int64(getEnvInt("MAX_CONCURRENT_REQUESTS", int(s.MaxConcurrentRequests)))
	s.MaintenanceMode = getEnvFlag("MAINTENANCE_MODE", s.MaintenanceMode)
	s.RequestLoggingDisabled = getEnvFlag("REQUEST_LOGGING_DISABLED", s.RequestLoggingDisabled)
	s.OrderbookDefaultDepth = getEnvInt("ORDERBOOK_DEFAULT_DEPTH", s.OrderbookDefaultDepth)
	s.OrderbookMaxDepth = getEnvInt("ORDERBOOK_MAX_DEPTH", s.OrderbookMaxDepth)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	if v := os.Getenv("SIM_SEED"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Simulation.Seed = parsed
		}
	}
	cfg.Run.Headless = getEnvFlag("SIM_HEADLESS", cfg.Run.Headless)
	cfg.Run.Duration = getEnvFloat("SIM_DURATION", cfg.Run.Duration)
	cfg.Run.TimeStep = getEnvFloat("SIM_TIME_STEP", cfg.Run.TimeStep)
	cfg.Run.RecordPath = getEnv("RECORD_PATH", cfg.Run.RecordPath)
}

func (c Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server port is required")
	}
	if c.Server.RateLimitMax <= 0 || c.Server.RateLimitWindow < time.Second {
		return fmt.Errorf("config: rate limit needs a positive max and a window of at least 1s")
	}
	if c.Server.OrderbookDefaultDepth <= 0 || c.Server.OrderbookMaxDepth < c.Server.OrderbookDefaultDepth {
		return fmt.Errorf("config: orderbook depth limits are inconsistent (default=%d max=%d)",
			c.Server.OrderbookDefaultDepth, c.Server.OrderbookMaxDepth)
	}
	if c.Run.Duration < 0 || c.Run.TimeStep <= 0 {
		return fmt.Errorf("config: run duration must be non-negative and time_step positive")
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if _, err := impact.New(c.Impact); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Impact.DecayRate < 0 {
		return fmt.Errorf("config: impact decay_rate must be non-negative, got %v", c.Impact.DecayRate)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvFlag treats "1" and "true" as set and "0" and "false" as unset.
func getEnvFlag(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	return fallback
}

// Unparseable or non-positive values keep the fallback.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
