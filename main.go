package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lob-sim/src/config"
	"lob-sim/src/engine"
	"lob-sim/src/handlers"
	"lob-sim/src/logger"
	"lob-sim/src/metrics"
	"lob-sim/src/recorder"
	"lob-sim/src/routes"
	"lob-sim/src/simulator"
)

func main() {
	// a missing .env is fine, real environment variables still apply
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	lg := logger.InitLogger(cfg.Log)
	defer logger.CloseLogger()

	lg.Info().
		Uint64("seed", cfg.Simulation.Seed).
		Bool("headless", cfg.Run.Headless).
		Msg("Initializing LOB simulator")

	collector := metrics.NewCollector().WithRuntimeCollectors()

	if cfg.Run.Headless {
		if err := runHeadless(cfg, lg, collector); err != nil {
			lg.Fatal().Err(err).Msg("Headless run failed")
		}
		return
	}
	serve(cfg, lg, collector)
}

func runHeadless(cfg config.Config, lg zerolog.Logger, collector *metrics.Collector) error {
	ctx := context.Background()
	opts := []simulator.Option{
		simulator.WithLogger(lg.With().Str("component", "simulator").Logger()),
		simulator.WithMetrics(collector),
	}

	if cfg.Run.RecordPath != "" {
		store, err := recorder.Open(cfg.Run.RecordPath)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.BeginRun(ctx, cfg.Simulation)
		if err != nil {
			return err
		}
		lg.Info().Str("run_id", run.ID.String()).Str("path", cfg.Run.RecordPath).Msg("Recording run")

		opts = append(opts, simulator.WithStepObserver(func(state simulator.MarketState, fills []engine.Fill) {
			if err := run.RecordStep(ctx, state, fills); err != nil {
				lg.Error().Err(err).Float64("timestamp", state.Timestamp).Msg("Failed to record step")
			}
		}))
	}

	sim, err := simulator.New(cfg.Simulation, opts...)
	if err != nil {
		return err
	}

	summary, err := sim.RunSimulation(cfg.Run.Duration, cfg.Run.TimeStep)
	if err != nil {
		return err
	}

	lg.Info().
		Float64("duration", summary.Duration).
		Int("steps", summary.NumSteps).
		Int64("trades", summary.TotalTrades).
		Int64("volume", summary.TotalVolume).
		Int("fills", summary.NumFills).
		Float64("avg_midprice", summary.AvgMidprice).
		Float64("midprice_std", summary.MidpriceStd).
		Float64("avg_spread", summary.AvgSpread).
		Float64("spread_std", summary.SpreadStd).
		Float64("avg_imbalance", summary.AvgImbalance).
		Float64("avg_volatility", summary.AvgVolatility).
		Msg("Simulation complete")
	return nil
}

func serve(cfg config.Config, lg zerolog.Logger, collector *metrics.Collector) {
	sim, err := simulator.New(cfg.Simulation,
		simulator.WithLogger(lg.With().Str("component", "simulator").Logger()),
		simulator.WithMetrics(collector),
	)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to create simulator")
	}

	simHandler, err := handlers.NewSimHandler(sim, cfg.Impact, cfg.Server)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to create impact model")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			lg.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, simHandler, cfg.Server, collector)

	port := ":" + cfg.Server.Port
	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			// edge case: ignore shutdown errors, only report real errors
			if err.Error() != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	select {
	case err := <-serverError:
		lg.Fatal().
			Err(err).
			Str("port", port).
			Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
			Msg("Server failed to start")
	default:
		lg.Info().
			Str("port", port).
			Msg("LOB simulator started")

		lg.Info().
			Strs("endpoints", []string{
				"POST   /api/v1/simulation/step",
				"POST   /api/v1/simulation/reset",
				"GET    /api/v1/market/state",
				"GET    /api/v1/market/history",
				"GET    /api/v1/orderbook",
				"GET    /api/v1/orders/:id/queue",
				"GET    /api/v1/accounts/:id",
				"GET    /api/v1/impact",
				"GET    /health",
				"GET    /metrics",
			}).
			Msg("API endpoints registered")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	lg.Info().Msg("Received shutdown signal, shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			lg.Warn().
				Dur("timeout", cfg.Server.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
		} else {
			lg.Error().
				Err(err).
				Msg("Error during shutdown")
		}
	} else {
		lg.Info().Msg("Shutdown complete")
	}
}
