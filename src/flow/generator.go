package flow

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog"

	"lob-sim/src/engine"
)

// pcgStream is the fixed second PCG word; the seed supplies the first.
const pcgStream = 0x9e3779b97f4a7c15

// poissonChunk bounds the mean handed to one Knuth draw so exp(-lambda)
// stays well away from underflow.
const poissonChunk = 30.0

type eventKind int

const (
	eventLimit eventKind = iota
	eventMarket
	eventCancel
)

type event struct {
	kind eventKind
	at   float64
}

// Generator produces exogenous order flow from three Poisson streams.
// All randomness comes from one PCG source seeded at construction, so equal
// seeds and configs yield identical sequences.
type Generator struct {
	cfg    Config
	grid   engine.TickGrid
	seed   uint64
	rng    *rand.Rand
	regime *VolatilityRegime

	nextID      func() int64
	ownCounter  int64
	outstanding []int64

	log zerolog.Logger
}

type GeneratorOption func(*Generator)

// WithIDSource makes the generator draw order ids from next instead of its
// own counter.
func WithIDSource(next func() int64) GeneratorOption {
	return func(g *Generator) {
		g.nextID = next
	}
}

func WithLogger(log zerolog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.log = log
	}
}

func NewGenerator(cfg Config, seed uint64, opts ...GeneratorOption) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := engine.NewTickGrid(cfg.TickSize)
	if err != nil {
		return nil, fmt.Errorf("flow generator: %w", err)
	}

	g := &Generator{
		cfg:    cfg,
		grid:   grid,
		seed:   seed,
		rng:    rand.New(rand.NewPCG(seed, pcgStream)),
		regime: NewVolatilityRegime(cfg.BaseVolatility, cfg.HighVolMultiplier, cfg.VolatilityRegimeProb),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.nextID == nil {
		g.nextID = g.counterID
	}
	return g, nil
}

func (g *Generator) counterID() int64 {
	g.ownCounter++
	return g.ownCounter
}

// GenerateOrderFlowSequence covers the window [0, duration) starting from the
// given mid and spread. It returns the merged orders and the volatility seen
// at every event.
func (g *Generator) GenerateOrderFlowSequence(duration, mid, spread float64) ([]engine.Order, []float64) {
	return g.GenerateOrderFlowAt(0, duration, mid, spread)
}

// GenerateOrderFlowAt is GenerateOrderFlowSequence with every timestamp
// shifted by start.
func (g *Generator) GenerateOrderFlowAt(start, duration, mid, spread float64) ([]engine.Order, []float64) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, nil
	}

	events := make([]event, 0)
	events = g.appendArrivals(events, eventLimit, duration, g.cfg.LimitOrderRate)
	events = g.appendArrivals(events, eventMarket, duration, g.cfg.MarketOrderRate)
	events = g.appendArrivals(events, eventCancel, duration, g.cfg.CancellationRate)
	// ties keep stream order: limit, market, cancel
	slices.SortStableFunc(events, func(a, b event) int {
		return cmp.Compare(a.at, b.at)
	})

	orders := make([]engine.Order, 0, len(events))
	vols := make([]float64, 0, len(events))

	localMid, localSpread := mid, spread
	prev := 0.0
	for _, ev := range events {
		vol := g.regime.Update(g.rng)
		vols = append(vols, vol)

		ts := start + ev.at
		switch ev.kind {
		case eventLimit:
			if o, ok := g.limitOrder(ts, localMid, localSpread); ok {
				orders = append(orders, o)
			}
		case eventMarket:
			if o, ok := g.marketOrder(ts); ok {
				orders = append(orders, o)
			}
		case eventCancel:
			if o, ok := g.cancellation(ts); ok {
				orders = append(orders, o)
			}
		}

		localMid += g.rng.NormFloat64() * vol * math.Sqrt(ev.at-prev)
		localSpread = spread * (1 + vol/g.cfg.BaseVolatility)
		prev = ev.at
	}

	g.log.Debug().
		Int("orders", len(orders)).
		Float64("start", start).
		Float64("duration", duration).
		Bool("high_vol", g.regime.IsHigh()).
		Msg("Generated order flow")
	return orders, vols
}

func (g *Generator) appendArrivals(events []event, kind eventKind, duration, rate float64) []event {
	n := g.poisson(rate * duration)
	start := len(events)
	for i := 0; i < n; i++ {
		events = append(events, event{kind: kind, at: g.rng.Float64() * duration})
	}
	slices.SortFunc(events[start:], func(a, b event) int {
		return cmp.Compare(a.at, b.at)
	})
	return events
}

// poisson splits lambda into chunks and sums Knuth draws; Poisson variables
// are additive in their means.
func (g *Generator) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	n := 0
	for lambda > 0 {
		chunk := min(lambda, poissonChunk)
		lambda -= chunk

		limit := math.Exp(-chunk)
		p := g.rng.Float64()
		for p > limit {
			n++
			p *= g.rng.Float64()
		}
	}
	return n
}

func (g *Generator) orderSize() int64 {
	size := int64(g.rng.NormFloat64()*float64(g.cfg.OrderSizeStd) + float64(g.cfg.MeanOrderSize))
	return max(1, min(max(size, max(1, g.cfg.MinOrderSize)), g.cfg.MaxOrderSize))
}

func (g *Generator) latency() float64 {
	return max(0, g.rng.NormFloat64()*g.cfg.LatencyStd+g.cfg.MeanLatency)
}

func (g *Generator) traderID() string {
	return fmt.Sprintf("trader_%d", 1+g.rng.IntN(99))
}

func (g *Generator) limitOrder(ts, mid, spread float64) (engine.Order, bool) {
	side := engine.SideSell
	if g.rng.Float64() < 0.5 {
		side = engine.SideBuy
	}

	offsetTicks := max(0, math.Trunc(g.rng.NormFloat64()*g.cfg.SpreadOffsetStdTicks+g.cfg.MeanSpreadOffsetTicks))
	offset := offsetTicks * g.cfg.TickSize

	price := mid + spread/2 + offset
	if side == engine.SideBuy {
		price = mid - spread/2 - offset
	}
	ticks := g.grid.ToTicks(price)
	if ticks < 1 {
		ticks = 1
	}

	latency := g.latency()
	size := g.orderSize()
	trader := g.traderID()

	id := g.nextID()
	order, err := engine.NewLimitOrder(id, side, g.grid.ToPrice(ticks), size, ts,
		engine.WithTraderID(trader), engine.WithLatency(latency))
	if err != nil {
		g.log.Warn().Err(err).Int64("order_id", id).Msg("Dropping invalid generated limit order")
		return engine.Order{}, false
	}
	g.outstanding = append(g.outstanding, id)
	return order, true
}

func (g *Generator) marketOrder(ts float64) (engine.Order, bool) {
	side := engine.SideSell
	if g.rng.Float64() < g.cfg.MarketOrderProbBuy {
		side = engine.SideBuy
	}
	latency := g.latency()
	size := g.orderSize()
	trader := g.traderID()

	id := g.nextID()
	order, err := engine.NewMarketOrder(id, side, size, ts,
		engine.WithTraderID(trader), engine.WithLatency(latency))
	if err != nil {
		g.log.Warn().Err(err).Int64("order_id", id).Msg("Dropping invalid generated market order")
		return engine.Order{}, false
	}
	return order, true
}

// cancellation targets one of this generator's own limit orders. The record
// may include orders that have since filled; the book ignores those.
func (g *Generator) cancellation(ts float64) (engine.Order, bool) {
	if len(g.outstanding) == 0 {
		return engine.Order{}, false
	}
	i := g.rng.IntN(len(g.outstanding))
	id := g.outstanding[i]
	g.outstanding = slices.Delete(g.outstanding, i, i+1)

	order, err := engine.NewCancelOrder(id, ts)
	if err != nil {
		return engine.Order{}, false
	}
	return order, true
}

func (g *Generator) CurrentVolatility() float64 {
	return g.regime.Current()
}

func (g *Generator) IsHighVolatility() bool {
	return g.regime.IsHigh()
}

// Outstanding returns a copy of the ids the generator may still cancel.
func (g *Generator) Outstanding() []int64 {
	return slices.Clone(g.outstanding)
}

func (g *Generator) Seed() uint64 {
	return g.seed
}

func (g *Generator) Config() Config {
	return g.cfg
}

// Reset returns the generator to its freshly constructed state, including the
// random stream.
func (g *Generator) Reset() {
	g.Reseed(g.seed)
}

// Reseed is Reset with a new seed.
func (g *Generator) Reseed(seed uint64) {
	g.seed = seed
	g.rng = rand.New(rand.NewPCG(seed, pcgStream))
	g.regime.reset()
	g.outstanding = nil
	g.ownCounter = 0
}
