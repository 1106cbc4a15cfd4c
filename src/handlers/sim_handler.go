package handlers

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"lob-sim/src/config"
	"lob-sim/src/engine"
	"lob-sim/src/impact"
	"lob-sim/src/models"
	"lob-sim/src/simulator"
)

// SimHandler serves one simulator. The simulator is single-threaded, so every
// handler holds mu for its whole body.
type SimHandler struct {
	mu        sync.Mutex
	sim       *simulator.Simulator
	tracker   *impact.Tracker
	modelKind impact.Kind
	cfg       config.ServerConfig
	StartTime time.Time
}

func NewSimHandler(sim *simulator.Simulator, impactCfg impact.Config, cfg config.ServerConfig) (*SimHandler, error) {
	model, err := impact.New(impactCfg)
	if err != nil {
		return nil, err
	}
	return &SimHandler{
		sim:       sim,
		tracker:   impact.NewTracker(model, impactCfg.DecayRate),
		modelKind: impactCfg.Kind,
		cfg:       cfg,
		StartTime: time.Now(),
	}, nil
}

func (h *SimHandler) Step(c *fiber.Ctx) error {
	var req models.StepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			log.Warn().
				Err(err).
				Str("ip", c.IP()).
				Str("path", c.Path()).
				Msg("Invalid request: malformed JSON")
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Invalid request: malformed JSON",
			})
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if req.Duration == 0 {
		req.Duration = h.sim.Config().TimeStep
	}
	if req.Steps == 0 {
		req.Steps = 1
	}
	if req.Steps < 0 || req.Steps > h.cfg.MaxStepsPerRequest {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "steps must be between 1 and " + strconv.Itoa(h.cfg.MaxStepsPerRequest),
		})
	}

	includeFills := c.QueryBool("include_fills", false)
	resp := models.StepResponse{}
	for i := 0; i < req.Steps; i++ {
		mid := h.sim.MarketState().Midprice
		fills, err := h.sim.Step(req.Duration)
		if err != nil {
			if errors.Is(err, simulator.ErrInvalidDuration) {
				return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
			}
			log.Error().Err(err).Msg("Simulation step failed")
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
				Error: "Internal server error",
			})
		}
		resp.Steps++

		for _, f := range fills {
			signed := f.SignedSize()
			resp.NumFills++
			resp.Volume += f.Size
			resp.SignedFlow += signed
			if _, _, err := h.tracker.AddTrade(f.Timestamp, float64(signed), mid); err != nil {
				log.Warn().Err(err).Str("trade_id", f.TradeID).Msg("Impact tracker rejected fill")
			}
			if includeFills {
				resp.Fills = append(resp.Fills, fillInfo(f))
			}
		}
	}
	resp.State = h.sim.MarketState()
	resp.TotalImpact = h.tracker.TotalImpact(h.sim.CurrentTime())

	log.Info().
		Int("steps", resp.Steps).
		Float64("duration", req.Duration).
		Int("fills", resp.NumFills).
		Int64("volume", resp.Volume).
		Float64("sim_time", resp.State.Timestamp).
		Msg("Simulation advanced")
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *SimHandler) Reset(c *fiber.Ctx) error {
	var req models.ResetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Invalid request: malformed JSON",
			})
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if req.Seed != nil {
		err = h.sim.ResetWithSeed(*req.Seed)
	} else {
		err = h.sim.Reset()
	}
	if err != nil {
		log.Error().Err(err).Msg("Simulator reset failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}
	h.tracker.Reset()

	return c.Status(fiber.StatusOK).JSON(models.ResetResponse{
		Seed:  h.sim.Seed(),
		State: h.sim.MarketState(),
	})
}

func (h *SimHandler) MarketState(c *fiber.Ctx) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.Status(fiber.StatusOK).JSON(h.sim.MarketState())
}

func (h *SimHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", h.cfg.HistoryMaxLimit)
	if limit <= 0 || limit > h.cfg.HistoryMaxLimit {
		limit = h.cfg.HistoryMaxLimit
	}

	h.mu.Lock()
	states := h.sim.StateHistory()
	h.mu.Unlock()

	if len(states) > limit {
		states = states[len(states)-limit:]
	}
	return c.Status(fiber.StatusOK).JSON(models.HistoryResponse{
		Count:  len(states),
		States: states,
	})
}

func (h *SimHandler) OrderBook(c *fiber.Ctx) error {
	depth := c.QueryInt("depth", h.cfg.OrderbookDefaultDepth)
	if depth <= 0 {
		depth = h.cfg.OrderbookDefaultDepth
	}
	// edge case: enforce maximum depth limit
	if depth > h.cfg.OrderbookMaxDepth {
		depth = h.cfg.OrderbookMaxDepth
	}

	h.mu.Lock()
	book := h.sim.Book()
	levels := book.BookDepth(depth)
	resp := models.OrderBookResponse{
		Timestamp: book.CurrentTime(),
		Bids:      priceLevels(levels.Bids),
		Asks:      priceLevels(levels.Asks),
		Imbalance: book.OrderBookImbalance(),
	}
	h.mu.Unlock()

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *SimHandler) QueuePosition(c *fiber.Ctx) error {
	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid order id",
		})
	}

	h.mu.Lock()
	pos, ok := h.sim.QueuePosition(orderID)
	resting, _ := h.sim.Book().Order(orderID)
	h.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Order not resting",
		})
	}
	return c.Status(fiber.StatusOK).JSON(models.QueuePositionResponse{
		OrderID:   orderID,
		Position:  pos.Position,
		SizeAhead: pos.SizeAhead,
		Remaining: resting.Remaining,
	})
}

func (h *SimHandler) Account(c *fiber.Ctx) error {
	h.mu.Lock()
	state, ok := h.sim.MMState(c.Params("id"))
	h.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Market maker not found",
		})
	}
	return c.Status(fiber.StatusOK).JSON(state)
}

func (h *SimHandler) Impact(c *fiber.Ctx) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.sim.CurrentTime()
	temp := h.tracker.TemporaryImpact(now)
	perm := h.tracker.PermanentImpact()
	return c.Status(fiber.StatusOK).JSON(models.ImpactResponse{
		Model:      string(h.modelKind),
		Time:       now,
		Temporary:  temp,
		Permanent:  perm,
		Total:      temp + perm,
		NumTrades:  len(h.tracker.History()),
		LastUpdate: h.tracker.LastUpdate(),
	})
}

func (h *SimHandler) HealthCheck(c *fiber.Ctx) error {
	h.mu.Lock()
	resp := models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.StartTime).Seconds()),
		SimTime:       h.sim.CurrentTime(),
		RestingOrders: h.sim.Book().RestingOrders(),
		Seed:          h.sim.Seed(),
	}
	h.mu.Unlock()
	return c.Status(fiber.StatusOK).JSON(resp)
}

func fillInfo(f engine.Fill) models.FillInfo {
	return models.FillInfo{
		TradeID:          f.TradeID,
		AggressorOrderID: f.AggressorOrderID,
		PassiveOrderID:   f.PassiveOrderID,
		Side:             string(f.Side),
		Price:            f.Price,
		Size:             f.Size,
		Timestamp:        f.Timestamp,
	}
}

func priceLevels(levels []engine.LevelSize) []models.PriceLevelInfo {
	out := make([]models.PriceLevelInfo, 0, len(levels))
	for _, l := range levels {
		out = append(out, models.PriceLevelInfo{Price: l.Price, Size: l.Size})
	}
	return out
}
